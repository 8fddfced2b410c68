package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- stubFactSource ---

type stubFactSource struct {
	mu    sync.Mutex
	facts []Fact
	err   error
	calls int

	// block, when set, is received from before returning. Used to observe
	// mid-pipeline state.
	block chan struct{}
}

func (s *stubFactSource) GatherFacts(ctx context.Context, subject string) ([]Fact, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]Fact(nil), s.facts...), nil
}

func (s *stubFactSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- stubStoryGen ---

type stubStoryGen struct {
	mu         sync.Mutex
	paragraphs []Paragraph
	raw        string
	err        error
	calls      int
}

func (s *stubStoryGen) GenerateStory(ctx context.Context, subject string, facts []Fact) ([]Paragraph, string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, "", s.err
	}
	return append([]Paragraph(nil), s.paragraphs...), s.raw, nil
}

func (s *stubStoryGen) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- stubJudge ---

// stubJudge maps guess text to a fact index. Unknown guesses are no-matches.
type stubJudge struct {
	matches map[string]int
	err     error
}

func (s *stubJudge) Judge(ctx context.Context, guessText string, facts []Fact) (*int, error) {
	if s.err != nil {
		return nil, s.err
	}
	if idx, ok := s.matches[guessText]; ok {
		return &idx, nil
	}
	return nil, nil
}

// --- memorySaver ---

type memorySaver struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (m *memorySaver) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memorySaver) latest() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return Snapshot{}, false
	}
	return m.snaps[len(m.snaps)-1], true
}

var errBoom = errors.New("boom")

func testFacts(n int) []Fact {
	facts := make([]Fact, n)
	for i := range facts {
		facts[i] = Fact{
			Text:   "fact " + string(rune('a'+i)),
			URL:    "https://example.com/" + string(rune('a'+i)),
			Source: "https://example.com/" + string(rune('a'+i)),
		}
	}
	return facts
}

func testParagraphs(n int) []Paragraph {
	paragraphs := make([]Paragraph, n)
	for i := range paragraphs {
		paragraphs[i] = Paragraph{Text: "paragraph", Number: i + 1}
	}
	return paragraphs
}
