package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/pulsefit/livecoach/pkg/archive"
	"github.com/pulsefit/livecoach/pkg/cli"
	"github.com/pulsefit/livecoach/pkg/sessionlog"
)

var sessionsFlags struct {
	output    string
	exportAll bool
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and export past sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := openLog()
		if err != nil {
			return err
		}
		defer log.Close()

		type row struct {
			ID       string `json:"id" yaml:"id"`
			Started  string `json:"started" yaml:"started"`
			Duration string `json:"duration" yaml:"duration"`
			Status   string `json:"status" yaml:"status"`
			Turns    int    `json:"turns" yaml:"turns"`
			PeakHR   string `json:"peakHeartRate" yaml:"peak_heart_rate"`
		}
		var rows []row
		for rec, err := range log.List(cmd.Context()) {
			if err != nil {
				return err
			}
			rows = append(rows, row{
				ID:       rec.ID,
				Started:  rec.StartedAt.Local().Format("2006-01-02 15:04"),
				Duration: cli.FormatDuration(rec.Duration()),
				Status:   rec.Status,
				Turns:    len(rec.Turns),
				PeakHR:   cli.FormatHeartRate(rec.PeakHeartRate),
			})
		}
		if len(rows) == 0 {
			cli.PrintInfo("no sessions recorded yet")
			return nil
		}
		return cli.Output(rows, cli.OutputOptions{Format: cli.OutputFormat(sessionsFlags.output)})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session including its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := openLog()
		if err != nil {
			return err
		}
		defer log.Close()

		rec, err := log.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.Output(rec, cli.OutputOptions{Format: cli.OutputFormat(sessionsFlags.output)})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one session from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := openLog()
		if err != nil {
			return err
		}
		defer log.Close()

		if err := log.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("deleted %s", args[0])
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export sessions as JSON to the configured archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sessionsFlags.exportAll && len(args) == 0 {
			return fmt.Errorf("pass a session id or --all")
		}

		log, err := openLog()
		if err != nil {
			return err
		}
		defer log.Close()

		exp, err := buildExporter(cmd.Context())
		if err != nil {
			return err
		}

		if sessionsFlags.exportAll {
			n, err := exp.ExportAll(cmd.Context(), log)
			if err != nil {
				return err
			}
			cli.PrintSuccess("exported %d sessions", n)
			return nil
		}

		rec, err := log.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		path, err := exp.Export(cmd.Context(), rec)
		if err != nil {
			return err
		}
		cli.PrintSuccess("exported %s", path)
		return nil
	},
}

func openLog() (*sessionlog.Log, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return sessionlog.Open(cfg.ResolveDataDir())
}

func buildExporter(ctx context.Context) (*archive.Exporter, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}

	switch cfg.Archive.Backend {
	case "", "local":
		store, err := archive.NewLocal(cfg.ResolveArchiveDir())
		if err != nil {
			return nil, err
		}
		return &archive.Exporter{Store: store}, nil
	case "s3":
		if cfg.Archive.Bucket == "" {
			return nil, fmt.Errorf("archive backend s3 requires a bucket")
		}
		// Credentials come from the standard AWS environment.
		client := s3.New(s3.Options{Region: os.Getenv("AWS_REGION")})
		return &archive.Exporter{Store: archive.NewS3(client, cfg.Archive.Bucket, cfg.Archive.Prefix)}, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func init() {
	sessionsCmd.PersistentFlags().StringVarP(&sessionsFlags.output, "output", "o", "yaml", "output format (yaml, json)")
	sessionsExportCmd.Flags().BoolVar(&sessionsFlags.exportAll, "all", false, "export every session")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}
