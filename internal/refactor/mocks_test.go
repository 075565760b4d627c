package refactor

import (
	"context"
	"fmt"
	"sync"

	"refinery/internal/discovery"
	"refinery/internal/oracle"
	"refinery/internal/rules"
)

// --- stubDeliberator ---

type stubDeliberator struct {
	mu      sync.Mutex
	calls   int
	cost    float64
	improve func(req oracle.ImproveRequest, call int) (string, error)
}

func (s *stubDeliberator) Improve(_ context.Context, req oracle.ImproveRequest) (*oracle.Improvement, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	content := req.Content
	if s.improve != nil {
		var err error
		content, err = s.improve(req, call)
		if err != nil {
			return nil, err
		}
	}
	return &oracle.Improvement{Content: content, Cost: s.cost, Model: "stub"}, nil
}

func (s *stubDeliberator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// appendBanner returns a deliberator that always proposes changed,
// trivially valid content at a fixed cost per call.
func appendBanner(cost float64) *stubDeliberator {
	return &stubDeliberator{
		cost: cost,
		improve: func(req oracle.ImproveRequest, call int) (string, error) {
			return req.Content + fmt.Sprintf("// improved %d\n", call), nil
		},
	}
}

// echoDeliberator proposes the input unchanged.
func echoDeliberator(cost float64) *stubDeliberator {
	return &stubDeliberator{cost: cost}
}

// --- validators ---

type okValidator struct{}

func (okValidator) Validate(discovery.FileType, []byte) error { return nil }

type rejectValidator struct{}

func (rejectValidator) Validate(discovery.FileType, []byte) error {
	return fmt.Errorf("synthetic syntax error")
}

// --- stubRuleChecker ---

// stubRuleChecker returns violation counts from a queue, one entry per
// Check call; the final entry repeats once the queue drains.
type stubRuleChecker struct {
	mu     sync.Mutex
	counts []int
	calls  int
}

func (s *stubRuleChecker) Check(_ []byte, path string) []rules.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.counts) {
		idx = len(s.counts) - 1
	}
	s.calls++
	n := 0
	if idx >= 0 {
		n = s.counts[idx]
	}
	out := make([]rules.Violation, n)
	for i := range out {
		out[i] = rules.Violation{ID: "stub", Message: "stub violation", Line: i + 1}
	}
	return out
}

// --- recordObserver ---

type recordObserver struct {
	mu       sync.Mutex
	started  []string
	finished []Result
	rounds   []int
	summary  *Summary
}

func (o *recordObserver) RunStarted(string, int) {}
func (o *recordObserver) RoundStarted(round int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rounds = append(o.rounds, round)
}
func (o *recordObserver) FileStarted(path string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, path)
}
func (o *recordObserver) FileFinished(res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}
func (o *recordObserver) RunFinished(sum *Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summary = sum
}
