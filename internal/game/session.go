package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is a per-game state machine. Commands (Start, SubmitGuess,
// DeclareDone) are serialized by a command mutex; committed state lives behind
// a separate read-write mutex so State never waits on an in-flight pipeline.
type Session struct {
	id string

	factSource FactSource
	storyGen   StoryGenerator
	judge      Judge
	saver      SnapshotSaver
	scoring    Scoring
	logger     *zap.Logger
	now        func() time.Time

	// cmdMu serializes mutating commands. A command holding it may spend
	// minutes in external calls; State must never need it.
	cmdMu sync.Mutex

	// mu guards the committed state below.
	mu            sync.RWMutex
	subject       string
	stage         Stage
	facts         []Fact
	story         []Paragraph
	attempts      []Attempt
	foundCount    int
	score         int
	lastMessage   string
	lastMessageAt time.Time
	started       bool
	finished      bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithScoring overrides the default scoring table.
func WithScoring(s Scoring) SessionOption {
	return func(sess *Session) { sess.scoring = s }
}

// WithSnapshotSaver persists every committed mutation. Save errors are logged,
// never fatal to the session.
func WithSnapshotSaver(s SnapshotSaver) SessionOption {
	return func(sess *Session) { sess.saver = s }
}

// WithClock overrides the session clock. Used by tests.
func WithClock(now func() time.Time) SessionOption {
	return func(sess *Session) { sess.now = now }
}

// NewSession creates an idle session.
func NewSession(id string, factSource FactSource, storyGen StoryGenerator, judge Judge, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:         id,
		factSource: factSource,
		storyGen:   storyGen,
		judge:      judge,
		scoring:    DefaultScoring(),
		logger:     logger.Named("session").With(zap.String("game_id", id)),
		now:        time.Now,
		stage:      StageIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start runs the setup pipeline: gather facts, then generate the story.
// A second call is a silent no-op. No facts is terminal (Failed); a bad story
// degrades to an empty one and the session still reaches StoryReady.
func (s *Session) Start(ctx context.Context, subject string) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.started || s.finished {
		s.mu.Unlock()
		s.logger.Debug("start ignored", zap.Bool("started", s.started), zap.Bool("finished", s.finished))
		return
	}
	s.started = true
	s.subject = subject
	s.mu.Unlock()
	s.persist(ctx)

	s.logger.Info("starting game", zap.String("subject", subject))

	facts, err := s.factSource.GatherFacts(ctx, subject)
	if err != nil {
		s.logger.Warn("fact gathering failed", zap.Error(err))
		facts = nil
	}

	if len(facts) == 0 {
		s.commit(ctx, func() {
			s.stage = StageFailed
			s.finished = true
			s.setMessage(fmt.Sprintf("It was not possible to generate a story about %q. Try something different.", subject))
		})
		s.logger.Info("game failed: no facts found")
		return
	}

	s.commit(ctx, func() {
		s.facts = facts
	})

	paragraphs, raw, err := s.storyGen.GenerateStory(ctx, subject, facts)
	if err != nil {
		// Facts exist, so the session stays playable with an empty story.
		s.logger.Warn("story generation degraded", zap.Error(err))
		paragraphs = nil
	}
	if paragraphs == nil {
		paragraphs = []Paragraph{}
	}

	message := raw
	if message == "" {
		message = "The story could not be written, but the truths are ready. Guess away!"
	}

	s.commit(ctx, func() {
		s.story = paragraphs
		s.foundCount = 0
		s.stage = StageStoryReady
		s.setMessage(message)
	})
	s.logger.Info("story ready",
		zap.Int("facts", len(facts)),
		zap.Int("paragraphs", len(paragraphs)))
}

// SubmitGuess judges a guess against the facts and adjusts the score. Guesses
// before setup completes or after the session finished are silent no-ops. A
// judge failure counts as "no match" rather than crashing the session.
func (s *Session) SubmitGuess(ctx context.Context, text string) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.RLock()
	facts := s.facts
	done := s.finished
	s.mu.RUnlock()

	if done || len(facts) == 0 {
		s.logger.Debug("guess ignored", zap.Bool("finished", done), zap.Int("facts", len(facts)))
		return
	}

	matchIndex, err := s.judge.Judge(ctx, text, facts)
	if err != nil {
		s.logger.Warn("judge call failed, scoring as no match", zap.Error(err))
		matchIndex = nil
	}
	if matchIndex != nil && (*matchIndex < 0 || *matchIndex >= len(facts)) {
		s.logger.Warn("judge returned out-of-range index", zap.Int("index", *matchIndex))
		matchIndex = nil
	}

	s.commit(ctx, func() {
		newMatch := matchIndex != nil && !s.alreadyFound(*matchIndex)

		if newMatch {
			s.score += s.scoring.CorrectGuessPoints
			s.foundCount++
			s.attempts = append(s.attempts, Attempt{
				GuessText:        text,
				MatchedFactIndex: matchIndex,
				Correct:          true,
			})
			s.setMessage("That is one of the truths! Well spotted.")
		} else {
			s.score -= s.scoring.WrongGuessPenalty
			s.attempts = append(s.attempts, Attempt{
				GuessText:        text,
				MatchedFactIndex: matchIndex,
				Correct:          false,
			})
			if matchIndex != nil {
				s.setMessage("You already found that truth...")
			} else {
				s.setMessage("That is not one of the truths...")
			}
		}
		s.stage = StageGuessing
	})
}

// DeclareDone finalizes the score and ends the game. Calling it on a finished
// session is a no-op.
func (s *Session) DeclareDone(ctx context.Context) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.RLock()
	done := s.finished
	s.mu.RUnlock()
	if done {
		s.logger.Debug("declare done ignored: already finished")
		return
	}

	s.commit(ctx, func() {
		totalFacts := len(s.facts)
		allFound := s.foundCount == totalFacts && totalFacts > 0

		if allFound {
			s.score += s.scoring.AllFoundBonus
			s.setMessage("Well done! All truths were found!")
		} else {
			s.score -= s.scoring.MissedFactPenalty * (totalFacts - s.foundCount)
			s.setMessage("Oh dear! You missed some truths...")
		}

		s.stage = StageFinished
		s.finished = true
	})
	s.logger.Info("game finished", zap.Int("found", s.foundCount), zap.Int("score", s.score))
}

// State returns the committed snapshot. It never blocks on external calls.
func (s *Session) State() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// alreadyFound reports whether a correct attempt already holds this index.
// Callers must hold mu.
func (s *Session) alreadyFound(index int) bool {
	for _, a := range s.attempts {
		if a.Correct && a.MatchedFactIndex != nil && *a.MatchedFactIndex == index {
			return true
		}
	}
	return false
}

// setMessage updates the poller-facing message. The timestamp is the
// change-detection token, so it must strictly increase even if the clock
// did not advance. Callers must hold mu.
func (s *Session) setMessage(text string) {
	now := s.now()
	if !now.After(s.lastMessageAt) {
		now = s.lastMessageAt.Add(time.Nanosecond)
	}
	s.lastMessage = text
	s.lastMessageAt = now
}

// commit applies a mutation under the state lock and persists the result.
func (s *Session) commit(ctx context.Context, mutate func()) {
	s.mu.Lock()
	mutate()
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *Session) persist(ctx context.Context) {
	if s.saver == nil {
		return
	}
	if err := s.saver.SaveSnapshot(ctx, s.State()); err != nil {
		s.logger.Warn("failed to persist snapshot", zap.Error(err))
	}
}

// snapshotLocked copies the committed state. Callers must hold mu.
func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Subject:     s.subject,
		Stage:       s.stage,
		FoundCount:  s.foundCount,
		Score:       s.score,
		LastMessage: s.lastMessage,
		Started:     s.started,
		Finished:    s.finished,
	}
	if !s.lastMessageAt.IsZero() {
		snap.LastMessageAt = s.lastMessageAt.Format(time.RFC3339Nano)
	}
	if s.facts != nil {
		snap.Facts = append([]Fact(nil), s.facts...)
	}
	if s.story != nil {
		snap.Story = append([]Paragraph(nil), s.story...)
	}
	if s.attempts != nil {
		snap.Attempts = append([]Attempt(nil), s.attempts...)
	}
	return snap
}

// Restore rebuilds a session from a persisted snapshot. A session that went
// down mid-setup cannot resume its pipeline, so it is marked failed with a
// restart notice; everything else resumes exactly where it stopped.
func Restore(snap Snapshot, factSource FactSource, storyGen StoryGenerator, judge Judge, logger *zap.Logger, opts ...SessionOption) *Session {
	s := NewSession(snap.ID, factSource, storyGen, judge, logger, opts...)

	s.mu.Lock()
	s.subject = snap.Subject
	s.stage = snap.Stage
	s.foundCount = snap.FoundCount
	s.score = snap.Score
	s.lastMessage = snap.LastMessage
	s.lastMessageAt = ParseMessageTime(snap.LastMessageAt)
	s.started = snap.Started
	s.finished = snap.Finished
	if snap.Facts != nil {
		s.facts = append([]Fact(nil), snap.Facts...)
	}
	if snap.Story != nil {
		s.story = append([]Paragraph(nil), snap.Story...)
	}
	if snap.Attempts != nil {
		s.attempts = append([]Attempt(nil), snap.Attempts...)
	}

	if s.started && !s.finished && s.stage == StageIdle {
		s.stage = StageFailed
		s.finished = true
		s.setMessage(fmt.Sprintf("The game about %q was interrupted during setup. Please start a new one.", s.subject))
	}
	s.mu.Unlock()

	return s
}
