package ws

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sbp-ops/sbp-ops/internal/events"
)

// Connection lifecycle. Terminal once closed; reconnection is the client's
// responsibility.
const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// session runs one live connection: a reader goroutine feeding inbound text
// frames, and the main loop owning all writes, driven by a single heartbeat
// ticker that both probes liveness and drains the event subscription.
type session struct {
	logger *slog.Logger
	conn   *websocket.Conn
	sub    *events.Subscription
	topic  string

	heartbeat time.Duration
	timeout   time.Duration

	lastSeen atomic.Int64
	state    atomic.Int32
	inbound  chan string
}

func newSession(logger *slog.Logger, conn *websocket.Conn, sub *events.Subscription, topic string, heartbeat, timeout time.Duration) *session {
	s := &session{
		logger:    logger,
		conn:      conn,
		sub:       sub,
		topic:     topic,
		heartbeat: heartbeat,
		timeout:   timeout,
		inbound:   make(chan string, 8),
	}
	s.touch()
	return s
}

func (s *session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *session) sinceLastSeen() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.lastSeen.Load())
}

// readPump consumes frames until the peer goes away. It never writes to the
// connection; it only refreshes liveness and forwards text frames.
func (s *session) readPump() {
	defer close(s.inbound)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(string) error {
		s.touch()
		select {
		case s.inbound <- pingSentinel:
		default:
		}
		return nil
	})
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.touch()
		if kind == websocket.TextMessage {
			select {
			case s.inbound <- string(data):
			default:
				// slow loop; inbound text is advisory only
			}
		}
	}
}

const pingSentinel = "\x00ping"

// run drives the connection until timeout or peer close. All writes happen
// here.
func (s *session) run() {
	defer s.close()

	go s.readPump()

	if err := s.writeEvent(events.Event{Tipe: "system", Event: "connected", Payload: "SBP ops stream ready"}); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for s.state.Load() == stateOpen {
		select {
		case msg, ok := <-s.inbound:
			if !ok {
				s.state.Store(stateClosing)
				return
			}
			switch msg {
			case pingSentinel:
				_ = s.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(s.heartbeat))
			case "ping":
				if err := s.writeText("pong"); err != nil {
					return
				}
			}
		case <-ticker.C:
			if s.sinceLastSeen() > s.timeout {
				s.logger.Info("websocket client timed out", slog.String("topic", s.topic))
				s.state.Store(stateClosing)
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "liveness timeout"),
					time.Now().Add(s.heartbeat))
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(s.heartbeat)); err != nil {
				return
			}
			if err := s.forwardPending(); err != nil {
				return
			}
		}
	}
}

// forwardPending drains the subscription without blocking and pushes matching
// events to the peer. Lag is tolerated: skipped events are logged, never a
// reason to drop the connection.
func (s *session) forwardPending() error {
	evs, skipped := s.sub.Drain()
	if skipped > 0 {
		s.logger.Warn("subscriber lagged, events skipped",
			slog.Uint64("skipped", skipped),
			slog.String("topic", s.topic))
	}
	for _, ev := range evs {
		if s.topic != "" && ev.Tipe != s.topic {
			continue
		}
		if err := s.writeEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) writeEvent(ev events.Event) error {
	raw, err := ev.Encode()
	if err != nil {
		s.logger.Error("encode event", slog.Any("error", err))
		return nil
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *session) writeText(msg string) error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (s *session) close() {
	if !s.state.CompareAndSwap(stateOpen, stateClosed) {
		s.state.Store(stateClosed)
	}
	s.sub.Close()
	_ = s.conn.Close()
}
