package hotchannel

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	closeWait = time.Second

	// sendBuffer is how many messages may wait for a slow subscriber before
	// it is dropped.
	sendBuffer = 16
)

// subscriber is one browser connection. Only its write pump writes data
// frames, so a stalled browser never blocks the hub.
type subscriber struct {
	id    uuid.UUID
	conn  *websocket.Conn
	queue chan []byte

	mu          sync.Mutex
	closed      bool
	done        chan struct{}
	closeCode   int
	closeReason string
	flush       bool
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	s := &subscriber{
		id:    uuid.Must(uuid.NewV4()),
		conn:  conn,
		queue: make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
	go s.writePump()
	return s
}

// enqueue hands payload to the write pump without blocking. It reports
// false when the subscriber is closed or its queue is full.
func (s *subscriber) enqueue(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- payload:
		return true
	default:
		return false
	}
}

// close writes the queued messages, then a close frame, and releases the
// connection. It does not wait for the pump.
func (s *subscriber) close(code int, reason string) {
	s.shut(code, reason, true)
}

// drop releases the connection without writing what is still queued.
func (s *subscriber) drop() {
	s.shut(websocket.ClosePolicyViolation, "too slow", false)
}

func (s *subscriber) shut(code int, reason string, flush bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeCode, s.closeReason, s.flush = code, reason, flush
	close(s.done)
}

func (s *subscriber) writePump() {
	defer func() { _ = s.conn.Close() }()
	for {
		select {
		case payload := <-s.queue:
			if err := s.write(payload, writeWait); err != nil {
				s.shut(websocket.CloseGoingAway, "", false)
				return
			}
		case <-s.done:
			s.finish()
			return
		}
	}
}

// finish runs once done is closed.
func (s *subscriber) finish() {
	s.mu.Lock()
	code, reason, flush := s.closeCode, s.closeReason, s.flush
	s.mu.Unlock()

	deadline := time.Now().Add(closeWait)
	for flush {
		select {
		case payload := <-s.queue:
			if s.write(payload, time.Until(deadline)) != nil {
				return
			}
		default:
			flush = false
		}
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
}

func (s *subscriber) write(payload []byte, wait time.Duration) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
