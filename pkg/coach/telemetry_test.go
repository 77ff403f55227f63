package coach

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pulsefit/livecoach/pkg/jsontime"
)

func TestSimulatedVitals_Bounds(t *testing.T) {
	v := NewSimulatedVitals(rand.NewPCG(1, 2))
	prevRecovery := vitalsRecoveryMax
	for i := 0; i < 500; i++ {
		s := v.Sample()
		if s.HeartRate < vitalsMinHR || s.HeartRate > vitalsMaxHR {
			t.Fatalf("sample %d: heart rate %d out of bounds", i, s.HeartRate)
		}
		if s.RecoveryTime > prevRecovery {
			t.Fatalf("sample %d: recovery rose from %d to %d", i, prevRecovery, s.RecoveryTime)
		}
		if s.RecoveryTime < vitalsRecoveryMin {
			t.Fatalf("sample %d: recovery %d below floor", i, s.RecoveryTime)
		}
		prevRecovery = s.RecoveryTime
	}
}

func TestSimulatedVitals_Begin(t *testing.T) {
	v := NewSimulatedVitals(rand.NewPCG(7, 7))
	v.Begin()
	s := v.Sample()
	// One step from the workout baseline, well above resting.
	if s.HeartRate < vitalsBaselineHR-3 || s.HeartRate > vitalsBaselineHR+3 {
		t.Errorf("heart rate after Begin = %d; want near %d", s.HeartRate, vitalsBaselineHR)
	}
	if s.RecoveryTime < vitalsRecoveryMax-2 {
		t.Errorf("recovery after Begin = %d; want near %d", s.RecoveryTime, vitalsRecoveryMax)
	}
}

func TestSimulatedVitals_Reset(t *testing.T) {
	v := NewSimulatedVitals(rand.NewPCG(3, 4))
	for i := 0; i < 100; i++ {
		v.Sample()
	}
	v.Reset()
	s := v.Sample()
	// One step from the resting point.
	if s.HeartRate < vitalsRestingHR-4 || s.HeartRate > vitalsRestingHR+6 {
		t.Errorf("heart rate after reset = %d; want near %d", s.HeartRate, vitalsRestingHR)
	}
	if s.RecoveryTime < vitalsRecoveryMax-2 {
		t.Errorf("recovery after reset = %d; want near %d", s.RecoveryTime, vitalsRecoveryMax)
	}
}

func TestEncodeTelemetry(t *testing.T) {
	sample := Telemetry{
		HeartRate:    128,
		RecoveryTime: 45,
		Timestamp:    jsontime.Milli(time.UnixMilli(1700000000000)),
	}
	payload, err := encodeTelemetry(sample)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	want := `{"heartRate":128,"recoveryTimeSeconds":45,"timestamp":1700000000000}`
	if payload != want {
		t.Errorf("payload = %s; want %s", payload, want)
	}

	var round Telemetry
	if err := json.Unmarshal([]byte(payload), &round); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if round.HeartRate != 128 || round.RecoveryTime != 45 {
		t.Errorf("round trip = %+v", round)
	}
	if !round.Timestamp.Time().Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("timestamp = %v", round.Timestamp)
	}
}
