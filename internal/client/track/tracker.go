package track

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultActivityWindow is how long a participant stays present after
// their last reported activity.
const DefaultActivityWindow = 10 * time.Second

// Config tunes the tracker.
type Config struct {
	BufferCapacity      int
	InterpolationDelay  time.Duration
	CorrectionThreshold float64
	MinSampleInterval   time.Duration
	ActivityWindow      time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:      DefaultBufferCapacity,
		InterpolationDelay:  DefaultInterpolationDelay,
		CorrectionThreshold: DefaultCorrectionThreshold,
		MinSampleInterval:   DefaultMinSampleInterval,
		ActivityWindow:      DefaultActivityWindow,
	}
}

// Events are the consumer callbacks the tracker fires. Nil callbacks are
// skipped. Callbacks run on the ingestion goroutine and must not block.
type Events struct {
	OnParticipantJoined  func(participantID string, position models.Vec3)
	OnParticipantLeft    func(participantID string)
	OnPositionCorrection func(participantID string, authoritative models.Vec3)
}

type remote struct {
	buffer     *Buffer
	lastActive time.Time
}

// Tracker maintains per-participant position buffers fed by the change
// feed and serves interpolated estimates to the rendering layer.
//
// Feed callbacks and frame reads may come from different goroutines, so
// all state is guarded by a single mutex.
type Tracker struct {
	mu sync.Mutex

	config     Config
	clock      clockwork.Clock
	events     Events
	reconciler *Reconciler
	remotes    map[string]*remote
	selfID     string
}

// NewTracker creates a tracker. selfID identifies the local participant,
// whose own feed echoes are ignored.
func NewTracker(config Config, selfID string, events Events, clock clockwork.Clock) *Tracker {
	if config.InterpolationDelay <= 0 {
		config.InterpolationDelay = DefaultInterpolationDelay
	}
	if config.ActivityWindow <= 0 {
		config.ActivityWindow = DefaultActivityWindow
	}
	return &Tracker{
		config:     config,
		clock:      clock,
		events:     events,
		reconciler: NewReconciler(config.CorrectionThreshold, config.MinSampleInterval),
		remotes:    make(map[string]*remote),
		selfID:     selfID,
	}
}

// Ingest processes one authoritative position row from the feed.
func (t *Tracker) Ingest(row models.ParticipantPosition) {
	if row.ParticipantID == t.selfID {
		return
	}

	t.mu.Lock()

	now := t.clock.Now()
	if !t.reconciler.Admit(row.ParticipantID, now) {
		t.mu.Unlock()
		return
	}

	r, known := t.remotes[row.ParticipantID]
	if !known {
		r = &remote{buffer: NewBuffer(t.config.BufferCapacity)}
		t.remotes[row.ParticipantID] = r
	}

	sample := row.Sample()
	renderTime := now.Add(-t.config.InterpolationDelay)
	estimate, haveEstimate := Estimate(r.buffer, renderTime)

	r.buffer.Ingest(sample)
	r.lastActive = row.LastActive
	if r.lastActive.IsZero() {
		r.lastActive = now
	}

	correction, corrected := t.reconciler.Check(sample, estimate, haveEstimate)
	t.mu.Unlock()

	if !known {
		log.Debug().Str("participantId", row.ParticipantID).Msg("participant joined")
		if t.events.OnParticipantJoined != nil {
			t.events.OnParticipantJoined(row.ParticipantID, sample.Position)
		}
	}
	if corrected && t.events.OnPositionCorrection != nil {
		t.events.OnPositionCorrection(correction.ParticipantID, correction.Position)
	}
}

// Estimate returns the interpolated position for a participant at the
// current render time. False when no samples are buffered.
func (t *Tracker) Estimate(participantID string) (models.Vec3, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.remotes[participantID]
	if !ok {
		return models.Vec3{}, false
	}
	renderTime := t.clock.Now().Add(-t.config.InterpolationDelay)
	return Estimate(r.buffer, renderTime)
}

// Participants returns the IDs currently tracked.
func (t *Tracker) Participants() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.remotes))
	for id := range t.remotes {
		ids = append(ids, id)
	}
	return ids
}

// Sweep drops participants whose last activity is older than the activity
// window and fires OnParticipantLeft for each. Called periodically by the
// owning client.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	cutoff := t.clock.Now().Add(-t.config.ActivityWindow)
	var left []string
	for id, r := range t.remotes {
		if r.lastActive.Before(cutoff) {
			delete(t.remotes, id)
			t.reconciler.Forget(id)
			left = append(left, id)
		}
	}
	t.mu.Unlock()

	for _, id := range left {
		log.Debug().Str("participantId", id).Msg("participant left")
		if t.events.OnParticipantLeft != nil {
			t.events.OnParticipantLeft(id)
		}
	}
}

// DropStale removes buffered samples older than cutoff for every
// participant. Used after a reconnect so estimates never interpolate
// across the gap.
func (t *Tracker) DropStale(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.remotes {
		r.buffer.DropOlderThan(cutoff)
	}
}

// Reset clears all tracked participants and throttle state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remotes = make(map[string]*remote)
	t.reconciler.Reset()
}
