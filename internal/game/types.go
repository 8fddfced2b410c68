// Package game implements the per-session state machine that drives one
// hallucinated-truth play-through from creation to completion.
package game

import (
	"context"
	"time"
)

// Stage is the coarse phase of a session's lifecycle. The integer values are
// part of the wire contract: clients key off them when rendering state.
type Stage int

const (
	StageFailed     Stage = -1
	StageIdle       Stage = 0
	StageStoryReady Stage = 1
	StageGuessing   Stage = 2
	StageFinished   Stage = 3
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageFailed:
		return "failed"
	case StageIdle:
		return "idle"
	case StageStoryReady:
		return "story_ready"
	case StageGuessing:
		return "guessing"
	case StageFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further mutation is accepted in this stage.
func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageFailed
}

// Fact is a short, source-attributed true statement the player must find.
type Fact struct {
	Text   string `json:"fact"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Paragraph is one numbered paragraph of the generated story.
type Paragraph struct {
	Text   string `json:"paragraph"`
	Number int    `json:"number"`
}

// Attempt records one guess and its judged outcome. MatchedFactIndex is nil
// when the judge found no matching fact.
type Attempt struct {
	GuessText        string `json:"userText"`
	MatchedFactIndex *int   `json:"matchedTruthIndex"`
	Correct          bool   `json:"correct"`
}

// Snapshot is the full read-only view of a session, answerable at any time.
// Field names follow the original game's getState wire shape.
type Snapshot struct {
	ID            string      `json:"id"`
	Subject       string      `json:"subject"`
	Stage         Stage       `json:"stage"`
	Facts         []Fact      `json:"knownFacts"`
	Story         []Paragraph `json:"story"`
	Attempts      []Attempt   `json:"userExplanations"`
	FoundCount    int         `json:"numFound"`
	Score         int         `json:"score"`
	LastMessage   string      `json:"lastReply"`
	LastMessageAt string      `json:"lastReplyTime"`
	Started       bool        `json:"started"`
	Finished      bool        `json:"finished"`
}

// FactSource gathers curated facts about a subject.
type FactSource interface {
	GatherFacts(ctx context.Context, subject string) ([]Fact, error)
}

// StoryGenerator produces the narrative embedding the facts. The raw string is
// the normalized model output, returned even when it fails to parse so the
// session can surface it to pollers.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, subject string, facts []Fact) (paragraphs []Paragraph, raw string, err error)
}

// Judge maps a free-text guess to the index of the fact it states, or nil.
type Judge interface {
	Judge(ctx context.Context, guessText string, facts []Fact) (*int, error)
}

// SnapshotSaver persists committed session snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// Scoring is the scoring table applied by the session.
type Scoring struct {
	CorrectGuessPoints int
	WrongGuessPenalty  int
	AllFoundBonus      int
	MissedFactPenalty  int
}

// DefaultScoring matches the observed original game: +2 for a new truth,
// -2 for a wrong or duplicate guess, +3 when everything was found, and
// -2 per missed truth at the end.
func DefaultScoring() Scoring {
	return Scoring{
		CorrectGuessPoints: 2,
		WrongGuessPenalty:  2,
		AllFoundBonus:      3,
		MissedFactPenalty:  2,
	}
}

// ParseMessageTime parses a snapshot's lastReplyTime back into a time.Time.
// Returns the zero time for an empty value.
func ParseMessageTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
