package guard

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// NoThreat is the analyzer result that never reaches the timeline.
const NoThreat = "No threat detected."

// FrameAnalyzer describes what happens in one captured frame.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, f Frame) (string, error)
}

var demoMessages = []string{
	"Person entered room and took a bag.",
	"Suspicious movement detected near laptop.",
	NoThreat,
	"Alert: Person interacted with object on table.",
}

// RandomAnalyzer stands in for a vision model by picking a canned result.
type RandomAnalyzer struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	messages []string
}

// NewRandomAnalyzer seeds from the clock when rnd is nil.
func NewRandomAnalyzer(rnd *rand.Rand) *RandomAnalyzer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomAnalyzer{rnd: rnd, messages: demoMessages}
}

func (a *RandomAnalyzer) Analyze(ctx context.Context, _ Frame) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages[a.rnd.Intn(len(a.messages))], nil
}

// AnalyzerFunc adapts a function to FrameAnalyzer.
type AnalyzerFunc func(ctx context.Context, f Frame) (string, error)

func (fn AnalyzerFunc) Analyze(ctx context.Context, f Frame) (string, error) {
	return fn(ctx, f)
}
