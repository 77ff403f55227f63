package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/pulsefit/livecoach/pkg/media"
	"github.com/pulsefit/livecoach/pkg/pose"
)

// Frame pipeline cadence.
const (
	frameInterval    = time.Second
	vitalsInterval   = 2 * time.Second
	frameJPEGQuality = 70
)

// pumpFrames runs the 1 Hz visual pipeline: grab a camera frame, encode
// it as JPEG, detect pose landmarks on the same frame, and forward
// image, landmarks and the current vitals snapshot. A failed grab skips
// this tick only.
func pumpFrames(ctx context.Context, cam media.Camera, estimator pose.Estimator, vitals *vitalsStats, transport Transport, stop <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		img, err := cam.Grab()
		if err != nil {
			log.Warn("frame grab failed", "err", err)
			continue
		}
		sendFrame(ctx, img, estimator, vitals, transport, log)
	}
}

// sendFrame forwards one frame's messages in fixed order: image, then
// pose landmarks, then the vitals snapshot. A pose miss suppresses only
// the landmark message.
func sendFrame(ctx context.Context, img image.Image, estimator pose.Estimator, vitals *vitalsStats, transport Transport, log *slog.Logger) {
	data, err := encodeJPEG(img)
	if err != nil {
		log.Warn("frame encode failed", "err", err)
		return
	}
	if err := transport.SendImage(data); err != nil {
		log.Warn("frame send failed", "err", err)
	}

	sendPose(ctx, img, estimator, transport, log)

	payload, err := encodeTelemetry(vitals.Current())
	if err != nil {
		log.Warn("telemetry encode failed", "err", err)
		return
	}
	if err := transport.SendText(TagPhysio, payload); err != nil {
		log.Warn("telemetry send failed", "err", err)
	}
}

func sendPose(ctx context.Context, img image.Image, estimator pose.Estimator, transport Transport, log *slog.Logger) {
	landmarks, err := estimator.Detect(ctx, img)
	if err != nil {
		if !errors.Is(err, pose.ErrNoPerson) && !errors.Is(err, pose.ErrNotSupported) {
			log.Warn("pose detection failed", "err", err)
		}
		return
	}
	payload, err := json.Marshal(landmarks)
	if err != nil {
		log.Warn("pose encode failed", "err", err)
		return
	}
	if err := transport.SendText(TagPose, string(payload)); err != nil {
		log.Warn("pose send failed", "err", err)
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// advanceVitals steps the physiological walk every two seconds. The
// frame pipeline reads the latest value on its own schedule.
func advanceVitals(vitals *vitalsStats, stop <-chan struct{}) {
	ticker := time.NewTicker(vitalsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			vitals.Sample()
		}
	}
}
