package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/client/track"
	"github.com/mfield4/skirmish/internal/feed"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/zerolog/log"
)

// Config holds client configuration. GatewayURL is the gateway's HTTP
// base, e.g. "http://localhost:8084".
type Config struct {
	GatewayURL    string
	ParticipantID string
	Supervisor    SupervisorConfig
	Track         track.Config
	SweepInterval time.Duration
}

// DefaultConfig returns a client config for the given gateway and
// participant.
func DefaultConfig(gatewayURL, participantID string) Config {
	return Config{
		GatewayURL:    gatewayURL,
		ParticipantID: participantID,
		Supervisor:    DefaultSupervisorConfig(feedURL(gatewayURL, participantID)),
		Track:         track.DefaultConfig(),
		SweepInterval: time.Second,
	}
}

// Callbacks are the consumer-facing events. Nil callbacks are skipped.
// They run on the client's feed goroutine and must not block.
type Callbacks struct {
	OnSessionPhaseChanged    func(session models.Session)
	OnParticipantJoined      func(participantID string, position models.Vec3)
	OnParticipantLeft        func(participantID string)
	OnPositionCorrection     func(participantID string, authoritative models.Vec3)
	OnConnectionStateChanged func(state ConnectionState)
}

// Client is the top-level SDK handle: it owns the session mirror, the
// position tracker and the feed supervisor, and exposes read methods for
// the rendering layer.
type Client struct {
	config     Config
	callbacks  Callbacks
	clock      clockwork.Clock
	httpClient *http.Client

	mirror     *Mirror
	tracker    *track.Tracker
	supervisor *Supervisor

	cancel    context.CancelFunc
	sweepDone chan struct{}
}

// New creates a client. Nothing connects until Start.
func New(config Config, callbacks Callbacks, clock clockwork.Clock) *Client {
	c := &Client{
		config:     config,
		callbacks:  callbacks,
		clock:      clock,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		mirror:     NewMirror(clock),
	}

	c.tracker = track.NewTracker(config.Track, config.ParticipantID, track.Events{
		OnParticipantJoined:  callbacks.OnParticipantJoined,
		OnParticipantLeft:    callbacks.OnParticipantLeft,
		OnPositionCorrection: callbacks.OnPositionCorrection,
	}, clock)

	c.supervisor = NewSupervisor(config.Supervisor, clock)
	c.supervisor.OnFrame = c.handleFrame
	c.supervisor.OnStateChange = callbacks.OnConnectionStateChanged
	c.supervisor.OnConnected = c.handleConnected

	return c
}

// Start connects the change feed and begins the presence sweep.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.sweepDone = make(chan struct{})

	c.supervisor.Start(ctx)
	go func() {
		defer close(c.sweepDone)
		c.sweepLoop(ctx)
	}()
}

// Stop tears the client down synchronously. It waits for the sweep loop
// and the feed supervisor to exit, so after it returns no callback fires
// and all buffers are cleared.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.supervisor.Stop()
	if c.sweepDone != nil {
		<-c.sweepDone
		c.sweepDone = nil
	}
	c.tracker.Reset()
	c.mirror.Clear()
}

// CurrentPhase returns the mirrored session phase.
func (c *Client) CurrentPhase() models.SessionPhase {
	return c.mirror.CurrentPhase()
}

// RemainingTime returns how long the mirrored phase has left.
func (c *Client) RemainingTime() time.Duration {
	return c.mirror.RemainingTime()
}

// CurrentSession returns a copy of the mirrored session.
func (c *Client) CurrentSession() (models.Session, bool) {
	return c.mirror.Current()
}

// Estimate returns the interpolated position of a remote participant at
// the current render time.
func (c *Client) Estimate(participantID string) (models.Vec3, bool) {
	return c.tracker.Estimate(participantID)
}

// Participants returns the remote participants currently tracked.
func (c *Client) Participants() []string {
	return c.tracker.Participants()
}

// ConnectionState returns the feed connection state.
func (c *Client) ConnectionState() ConnectionState {
	return c.supervisor.State()
}

// PublishPosition reports the local participant's position to the
// gateway. Other clients receive it through the change feed.
func (c *Client) PublishPosition(position models.Vec3) error {
	sample := models.PositionSample{
		ParticipantID: c.config.ParticipantID,
		Position:      position,
		ObservedAt:    c.clock.Now(),
	}
	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	url := strings.TrimSuffix(c.config.GatewayURL, "/") + "/position"
	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("publish position: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("publish position: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// handleConnected runs after every successful dial. The snapshot fetch
// replaces whatever the mirror held; after a reconnect, samples older
// than the outage are dropped so interpolation cannot smooth across it.
func (c *Client) handleConnected(lostAt time.Time) {
	if !lostAt.IsZero() {
		c.tracker.DropStale(lostAt)
	}
	if err := c.bootstrap(); err != nil {
		log.Warn().Err(err).Msg("state bootstrap failed, waiting for pushed events")
	}
}

type stateSnapshot struct {
	Session      *models.Session              `json:"session"`
	Participants []models.ParticipantPosition `json:"participants"`
}

func (c *Client) bootstrap() error {
	url := strings.TrimSuffix(c.config.GatewayURL, "/") + "/state"
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch state: unexpected status %d", resp.StatusCode)
	}

	var snapshot stateSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	if snapshot.Session != nil {
		if c.mirror.Update(*snapshot.Session) && c.callbacks.OnSessionPhaseChanged != nil {
			c.callbacks.OnSessionPhaseChanged(*snapshot.Session)
		}
	}
	for _, row := range snapshot.Participants {
		c.tracker.Ingest(row)
	}
	return nil
}

// handleFrame decodes one pushed feed event and routes it.
func (c *Client) handleFrame(data []byte) {
	var event feed.Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Warn().Err(err).Msg("dropping undecodable feed frame")
		return
	}

	switch event.Table {
	case feed.TableSessions:
		var session models.Session
		if err := json.Unmarshal(event.Payload, &session); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable session payload")
			return
		}
		if c.mirror.Update(session) && c.callbacks.OnSessionPhaseChanged != nil {
			c.callbacks.OnSessionPhaseChanged(session)
		}

	case feed.TablePositions:
		var row models.ParticipantPosition
		if err := json.Unmarshal(event.Payload, &row); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable position payload")
			return
		}
		c.tracker.Ingest(row)

	default:
		log.Debug().Str("table", event.Table).Msg("ignoring feed event for unknown table")
	}
}

func (c *Client) sweepLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.tracker.Sweep()
		}
	}
}

func feedURL(gatewayURL, participantID string) string {
	ws := strings.Replace(gatewayURL, "http", "ws", 1)
	return strings.TrimSuffix(ws, "/") + "/ws/feed?participant_id=" + participantID
}
