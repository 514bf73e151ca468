package track

import (
	"time"

	"github.com/mfield4/skirmish/internal/models"
)

const (
	// DefaultCorrectionThreshold is the Euclidean distance between an
	// authoritative sample and the current estimate past which a
	// correction is surfaced to the consumer.
	DefaultCorrectionThreshold = 0.1

	// DefaultMinSampleInterval bounds per-participant processing rate
	// regardless of how fast the feed delivers updates.
	DefaultMinSampleInterval = 100 * time.Millisecond
)

// Correction carries an authoritative position the consumer should snap
// or blend toward.
type Correction struct {
	ParticipantID string
	Position      models.Vec3
	Distance      float64
}

// Reconciler decides, per authoritative sample, whether the divergence
// from the interpolated estimate is large enough to surface.
type Reconciler struct {
	threshold   float64
	minInterval time.Duration
	lastAccept  map[string]time.Time
}

// NewReconciler creates a reconciler. Zero values for threshold or
// minInterval select the defaults.
func NewReconciler(threshold float64, minInterval time.Duration) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultCorrectionThreshold
	}
	if minInterval <= 0 {
		minInterval = DefaultMinSampleInterval
	}
	return &Reconciler{
		threshold:   threshold,
		minInterval: minInterval,
		lastAccept:  make(map[string]time.Time),
	}
}

// Admit reports whether a sample for the participant should be processed
// at all, enforcing the per-participant minimum interval. Admitted samples
// advance the participant's throttle window.
func (r *Reconciler) Admit(participantID string, now time.Time) bool {
	last, ok := r.lastAccept[participantID]
	if ok && now.Sub(last) < r.minInterval {
		return false
	}
	r.lastAccept[participantID] = now
	return true
}

// Check compares an authoritative sample against the current estimate and
// returns a correction when they diverge past the threshold. When no
// estimate exists the sample is taken as-is with no correction.
func (r *Reconciler) Check(sample models.PositionSample, estimate models.Vec3, haveEstimate bool) (Correction, bool) {
	if !haveEstimate {
		return Correction{}, false
	}
	d := sample.Position.Distance(estimate)
	if d <= r.threshold {
		return Correction{}, false
	}
	return Correction{
		ParticipantID: sample.ParticipantID,
		Position:      sample.Position,
		Distance:      d,
	}, true
}

// Forget drops throttle state for a participant that has left.
func (r *Reconciler) Forget(participantID string) {
	delete(r.lastAccept, participantID)
}

// Reset clears all throttle state.
func (r *Reconciler) Reset() {
	r.lastAccept = make(map[string]time.Time)
}
