package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/pulsefit/livecoach/pkg/audio/resampler"
	"github.com/pulsefit/livecoach/pkg/cli"
	"github.com/pulsefit/livecoach/pkg/coach"
	"github.com/pulsefit/livecoach/pkg/media"
	"github.com/pulsefit/livecoach/pkg/pose"
	"github.com/pulsefit/livecoach/pkg/sessionlog"
)

var runFlags struct {
	server      string
	model       string
	instruction string
	duration    time.Duration
	audioOut    string
	micFile     string
	micRate     int
	micStereo   bool
	noRecord    bool
	plain       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live coaching session",
	Long: `Run starts a coaching session: microphone audio, camera frames with
pose landmarks and physiological telemetry stream to the model, and the
coach's spoken replies play back as PCM.

Without real capture hardware the session uses synthetic media (a sine
tone and a moving test pattern), which exercises the full pipeline.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.server, "server", "", "WebSocket endpoint (overrides the Gemini Live API)")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "coaching model identifier")
	runCmd.Flags().StringVar(&runFlags.instruction, "instruction", "", "system instruction override")
	runCmd.Flags().DurationVar(&runFlags.duration, "duration", 0, "end the session after this long (0 = until interrupted)")
	runCmd.Flags().StringVar(&runFlags.audioOut, "audio-out", "", "write coach speech PCM to this file")
	runCmd.Flags().StringVar(&runFlags.micFile, "mic-file", "", "read microphone input from a raw 16-bit PCM file")
	runCmd.Flags().IntVar(&runFlags.micRate, "mic-rate", 48000, "sample rate of --mic-file")
	runCmd.Flags().BoolVar(&runFlags.micStereo, "mic-stereo", false, "--mic-file is stereo")
	runCmd.Flags().BoolVar(&runFlags.noRecord, "no-record", false, "do not store the session in history")
	runCmd.Flags().BoolVar(&runFlags.plain, "plain", false, "line output instead of the live view")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connector, err := buildConnector(ctx, cfg.APIKey)
	if err != nil {
		return err
	}

	var audioSink io.Writer = io.Discard
	if runFlags.audioOut != "" {
		f, err := os.Create(runFlags.audioOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", runFlags.audioOut, err)
		}
		defer f.Close()
		audioSink = f
	}

	var recorder coach.Recorder
	var log *sessionlog.Log
	if !runFlags.noRecord {
		log, err = sessionlog.Open(cfg.ResolveDataDir())
		if err != nil {
			return err
		}
		defer log.Close()
		recorder = &sessionlog.Recorder{Log: log}
	}

	model := runFlags.model
	if model == "" {
		model = cfg.Model
	}
	instruction := runFlags.instruction
	if instruction == "" {
		instruction = cfg.SystemInstruction
	}
	if instruction == "" {
		instruction = coach.DefaultInstruction(cfg.Language)
	}

	var provider media.Provider = &media.SyntheticProvider{}
	if runFlags.micFile != "" {
		provider = &fileMicProvider{
			path:   runFlags.micFile,
			format: resampler.Format{SampleRate: runFlags.micRate, Stereo: runFlags.micStereo},
		}
	}

	status := cli.NewFeed(8)
	sess := coach.NewSession(coach.Config{
		Media:     provider,
		Connector: connector,
		Connect: coach.ConnectConfig{
			Model:             model,
			SystemInstruction: instruction,
		},
		Pose:     &pose.Fixed{Landmarks: pose.StandingFigure()},
		Player:   coach.NewWriterPlayer(audioSink),
		Recorder: recorder,
		OnStateChange: func(s coach.State) {
			status.Add("session " + s.String())
		},
	})

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Stop()
	cli.PrintInfo("session active; press Ctrl-C to stop")

	done := ctx.Done()
	var timer <-chan time.Time
	if runFlags.duration > 0 {
		t := time.NewTimer(runFlags.duration)
		defer t.Stop()
		timer = t.C
	}

	render := time.NewTicker(500 * time.Millisecond)
	defer render.Stop()

	frame := cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "Live Coach",
		Sections: []cli.Section{
			{Label: "Transcript", Content: func() []string { return transcriptLines(sess) }},
			{Label: "Status", Content: status.Lines},
		},
		Help: "Ctrl-C to stop",
	}

	for {
		select {
		case <-done:
			sess.Stop()
			return sessionOutcome(sess)
		case <-timer:
			sess.Stop()
			return sessionOutcome(sess)
		case <-render.C:
			state := sess.State()
			if runFlags.plain {
				printPlain(sess)
			} else {
				frame.Status = state.String()
				fmt.Print("\033[H\033[2J" + frame.Render(80, 24) + "\n")
			}
			if state.Terminal() {
				return sessionOutcome(sess)
			}
		}
	}
}

// fileMicProvider plays a raw PCM file as the microphone, resampled to
// the capture rate, paired with the synthetic test-pattern camera.
type fileMicProvider struct {
	path   string
	format resampler.Format
}

func (p *fileMicProvider) Acquire(_ context.Context, c media.Constraints) (*media.Stream, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, err
	}
	mic, err := media.NewReaderMic(f, p.format)
	if err != nil {
		f.Close()
		return nil, err
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 360
	}
	return &media.Stream{Mic: mic, Camera: media.NewPatternCamera(w, h)}, nil
}

func buildConnector(ctx context.Context, apiKey string) (coach.Connector, error) {
	if runFlags.server != "" {
		return &coach.WSConnector{URL: runFlags.server}, nil
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured; set api_key in the config, GEMINI_API_KEY, or use --server")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &coach.GeminiConnector{Client: client}, nil
}

func transcriptLines(sess *coach.Session) []string {
	var lines []string
	for _, turn := range sess.Transcript().Turns() {
		if turn.UserInput != "" {
			lines = append(lines, "you:   "+turn.UserInput)
		}
		if turn.ModelOutput != "" {
			lines = append(lines, "coach: "+turn.ModelOutput)
		}
	}
	if p := sess.Transcript().Partial(); p.UserInput != "" || p.ModelOutput != "" {
		if p.UserInput != "" {
			lines = append(lines, "you:   "+p.UserInput)
		}
		if p.ModelOutput != "" {
			lines = append(lines, "coach: "+p.ModelOutput+" …")
		}
	}
	return lines
}

var printedTurns int

// printPlain prints newly completed turns; partial deltas churn too
// much for line output.
func printPlain(sess *coach.Session) {
	turns := sess.Transcript().Turns()
	for ; printedTurns < len(turns); printedTurns++ {
		turn := turns[printedTurns]
		if turn.UserInput != "" {
			fmt.Println("you:   " + turn.UserInput)
		}
		if turn.ModelOutput != "" {
			fmt.Println("coach: " + turn.ModelOutput)
		}
	}
}

func sessionOutcome(sess *coach.Session) error {
	if err := sess.Err(); err != nil {
		return err
	}
	cli.PrintSuccess("session ended")
	return nil
}
