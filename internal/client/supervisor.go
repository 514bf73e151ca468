package client

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnectionState describes the change-feed subscription's lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// SupervisorConfig tunes the reconnect loop.
type SupervisorConfig struct {
	URL              string
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

// DefaultSupervisorConfig returns defaults for everything but the URL.
func DefaultSupervisorConfig(url string) SupervisorConfig {
	return SupervisorConfig{
		URL:              url,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// Backoff returns the reconnect delay for a zero-based attempt count:
// min(base * 2^attempt, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt >= 63 {
		return max
	}
	d := base << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// Supervisor owns the change-feed WebSocket: it connects, hands every
// received frame to OnFrame, and on failure reconnects with exponential
// backoff. A successful connection resets the attempt counter.
type Supervisor struct {
	config SupervisorConfig
	clock  clockwork.Clock
	dialer *websocket.Dialer

	// OnFrame receives every raw message. OnStateChange fires on each
	// lifecycle transition. OnConnected fires after each successful dial
	// with the time the previous connection was lost (zero on the first
	// connect). All run on the supervisor goroutine and must not block.
	OnFrame       func(data []byte)
	OnStateChange func(state ConnectionState)
	OnConnected   func(lostAt time.Time)

	mu      sync.Mutex
	state   ConnectionState
	attempt int
	conn    *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor in the disconnected state.
func NewSupervisor(config SupervisorConfig, clock clockwork.Clock) *Supervisor {
	return &Supervisor{
		config: config,
		clock:  clock,
		dialer: &websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempt returns the current consecutive failure count.
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Start runs the connect/read/reconnect loop on its own goroutine until
// Stop is called or ctx is cancelled. Starting an already running
// supervisor is a no-op; the first loop keeps its connection.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		cancel()
		log.Warn().Msg("feed supervisor already started")
		return
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.run(ctx)
	}()
}

// Stop tears the subscription down synchronously: once it returns, no
// further callbacks fire and the backoff counter is cleared.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	conn := s.conn
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.attempt = 0
	s.conn = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.setState(StateDisconnected)
}

func (s *Supervisor) run(ctx context.Context) {
	var lostAt time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
		if err != nil {
			s.mu.Lock()
			attempt := s.attempt
			s.attempt++
			s.mu.Unlock()

			delay := Backoff(attempt, s.config.BaseDelay, s.config.MaxDelay)
			log.Warn().
				Err(&SubscriptionError{Op: "dial", Err: err}).
				Int("attempt", attempt+1).
				Dur("retryIn", delay).
				Msg("feed connection failed")
			s.setState(StateError)

			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(delay):
			}
			continue
		}

		s.mu.Lock()
		s.attempt = 0
		s.conn = conn
		s.mu.Unlock()

		log.Info().Str("url", s.config.URL).Msg("feed connected")
		s.setState(StateConnected)
		if s.OnConnected != nil {
			s.OnConnected(lostAt)
		}

		err = s.readLoop(ctx, conn)
		conn.Close()
		lostAt = s.clock.Now()

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		log.Warn().Err(&SubscriptionError{Op: "read", Err: err}).Msg("feed connection lost")
		s.setState(StateError)

		s.mu.Lock()
		attempt := s.attempt
		s.attempt++
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(Backoff(attempt, s.config.BaseDelay, s.config.MaxDelay)):
		}
	}
}

func (s *Supervisor) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.OnFrame != nil {
			s.OnFrame(data)
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
}

func (s *Supervisor) setState(state ConnectionState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed && s.OnStateChange != nil {
		s.OnStateChange(state)
	}
}
