package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CaptureInterval is how often clients should submit a frame while armed.
	CaptureInterval = 4 * time.Second
	MaxEvents       = 100
)

var (
	ErrDisarmed   = errors.New("monitor is disarmed")
	ErrEmptyFrame = errors.New("no frame provided")
)

type (
	Frame struct {
		Name string
		Data []byte
	}

	Event struct {
		ID      string    `json:"id"`
		Message string    `json:"message"`
		At      time.Time `json:"at"`
	}
)

// Monitor holds the armed flag and an append-only, bounded timeline.
type Monitor struct {
	mu        sync.RWMutex
	armed     bool
	events    []Event
	maxEvents int
	analyzer  FrameAnalyzer
	now       func() time.Time
}

// NewMonitor starts disarmed. A nil analyzer uses RandomAnalyzer.
func NewMonitor(analyzer FrameAnalyzer, maxEvents int) *Monitor {
	if analyzer == nil {
		analyzer = NewRandomAnalyzer(nil)
	}
	if maxEvents <= 0 {
		maxEvents = MaxEvents
	}
	return &Monitor{analyzer: analyzer, maxEvents: maxEvents, now: time.Now}
}

func (m *Monitor) Arm()    { m.setArmed(true) }
func (m *Monitor) Disarm() { m.setArmed(false) }

func (m *Monitor) setArmed(v bool) {
	m.mu.Lock()
	m.armed = v
	m.mu.Unlock()
}

// Toggle flips the armed flag and returns the new value.
func (m *Monitor) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed = !m.armed
	return m.armed
}

func (m *Monitor) Armed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.armed
}

// Timeline returns the recorded events, oldest first.
func (m *Monitor) Timeline() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Event(nil), m.events...)
}

// SubmitFrame analyzes one frame. The bool reports whether an event was
// recorded; the analyzer's no-threat result records nothing.
func (m *Monitor) SubmitFrame(ctx context.Context, f Frame) (Event, bool, error) {
	if !m.Armed() {
		return Event{}, false, ErrDisarmed
	}
	if len(f.Data) == 0 {
		return Event{}, false, ErrEmptyFrame
	}

	msg, err := m.analyzer.Analyze(ctx, f)
	if err != nil {
		return Event{}, false, fmt.Errorf("analyze frame: %w", err)
	}
	if msg == NoThreat {
		return Event{}, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Disarmed while the analyzer ran.
	if !m.armed {
		return Event{}, false, ErrDisarmed
	}
	ev := Event{ID: uuid.NewString(), Message: msg, At: m.now()}
	m.events = append(m.events, ev)
	if over := len(m.events) - m.maxEvents; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return ev, true, nil
}
