package coach

import (
	"encoding/json"
	"math/rand/v2"
	"sync"

	"github.com/pulsefit/livecoach/pkg/jsontime"
)

// Telemetry is one physiological sample.
type Telemetry struct {
	HeartRate    int            `json:"heartRate"`
	RecoveryTime int            `json:"recoveryTimeSeconds"`
	Timestamp    jsontime.Milli `json:"timestamp"`
}

// Vitals produces physiological telemetry samples.
type Vitals interface {
	// Sample returns the current reading and advances internal state.
	Sample() Telemetry

	// Begin seeds the workout readings when a session becomes active.
	Begin()

	// Reset returns the source to its resting readings when the
	// session ends.
	Reset()
}

// SimulatedVitals is a Vitals backed by a bounded random walk: heart
// rate drifts around a workout baseline and recovery time decays toward
// a floor as the session progresses.
type SimulatedVitals struct {
	mu        sync.Mutex
	rand      *rand.Rand
	heartRate int
	recovery  int
}

const (
	vitalsRestingHR   = 65
	vitalsBaselineHR  = 110
	vitalsMinHR       = 60
	vitalsMaxHR       = 185
	vitalsRecoveryMax = 90
	vitalsRecoveryMin = 20
)

// NewSimulatedVitals returns a simulator seeded from src. A nil src
// uses the global random source.
func NewSimulatedVitals(src rand.Source) *SimulatedVitals {
	v := &SimulatedVitals{}
	if src != nil {
		v.rand = rand.New(src)
	}
	v.Reset()
	return v
}

// Sample implements Vitals.
func (v *SimulatedVitals) Sample() Telemetry {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Drift toward the workout baseline, plus jitter.
	drift := 0
	if v.heartRate < vitalsBaselineHR {
		drift = 2
	} else if v.heartRate > vitalsBaselineHR {
		drift = -1
	}
	v.heartRate += drift + v.intN(7) - 3
	if v.heartRate < vitalsMinHR {
		v.heartRate = vitalsMinHR
	}
	if v.heartRate > vitalsMaxHR {
		v.heartRate = vitalsMaxHR
	}

	if v.recovery > vitalsRecoveryMin {
		v.recovery -= v.intN(3)
		if v.recovery < vitalsRecoveryMin {
			v.recovery = vitalsRecoveryMin
		}
	}

	return Telemetry{
		HeartRate:    v.heartRate,
		RecoveryTime: v.recovery,
		Timestamp:    jsontime.Now(),
	}
}

// Begin implements Vitals: the walk starts at the workout baseline, not
// at rest, so the first samples already look like mid-exercise readings.
func (v *SimulatedVitals) Begin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.heartRate = vitalsBaselineHR
	v.recovery = vitalsRecoveryMax
}

// Reset implements Vitals.
func (v *SimulatedVitals) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.heartRate = vitalsRestingHR
	v.recovery = vitalsRecoveryMax
}

func (v *SimulatedVitals) intN(n int) int {
	if v.rand != nil {
		return v.rand.IntN(n)
	}
	return rand.IntN(n)
}

// encodeTelemetry renders one sample as the wire payload for TagPhysio.
func encodeTelemetry(t Telemetry) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
