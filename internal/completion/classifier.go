package completion

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/verte-zerg/osutrack/internal/model"
)

// DefaultLookupTimeout bounds a single score-existence request.
const DefaultLookupTimeout = 10 * time.Second

// ScoreChecker answers whether the player already has a score on a map.
type ScoreChecker interface {
	ScoreExists(ctx context.Context, beatmapID int) (bool, error)
}

// Poster runs fn on the goroutine that owns the Classifier.
type Poster func(fn func())

// ClassifierOptions configures a Classifier.
type ClassifierOptions struct {
	// Timeout bounds each lookup; expiry counts as a failed lookup.
	Timeout time.Duration
	// Post delivers results of lookups started at run start. When nil those
	// lookups run inline.
	Post   Poster
	Logger *log.Logger
}

// Classifier decides which finished runs are new completions.
// All methods must be called from the owning goroutine.
type Classifier struct {
	checker ScoreChecker
	counter *Counter
	timeout time.Duration
	post    Poster
	logger  *log.Logger
	session *Session
}

// NewClassifier creates a Classifier with an empty session.
func NewClassifier(checker ScoreChecker, counter *Counter, opts ClassifierOptions) *Classifier {
	c := &Classifier{
		checker: checker,
		counter: counter,
		timeout: opts.Timeout,
		post:    opts.Post,
		logger:  opts.Logger,
		session: newSession(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultLookupTimeout
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Session returns the caches of the current connection.
func (c *Classifier) Session() *Session {
	return c.session
}

// Reset discards both caches. Called when the telemetry connection drops.
func (c *Classifier) Reset() {
	c.session = newSession()
}

// RunStarted prepares classification of the run that just began.
func (c *Classifier) RunStarted(beatmapID int, mods *model.Mods) {
	if beatmapID <= 0 {
		return
	}
	s := c.session
	if mods.IsAssisted() {
		c.logger.Printf("completion: map %d started with assist mods, run will not count", beatmapID)
		s.skip[beatmapID] = true
		return
	}
	delete(s.skip, beatmapID)
	if s.counted[beatmapID] {
		return
	}

	lookup := func() (bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return c.checker.ScoreExists(ctx, beatmapID)
	}
	if c.post == nil {
		exists, err := lookup()
		c.applyStartLookup(s, beatmapID, exists, err)
		return
	}
	go func() {
		exists, err := lookup()
		c.post(func() {
			c.applyStartLookup(s, beatmapID, exists, err)
		})
	}()
}

func (c *Classifier) applyStartLookup(s *Session, beatmapID int, exists bool, err error) {
	if s != c.session {
		// The connection this lookup belonged to is gone.
		return
	}
	if s.counted[beatmapID] {
		return
	}
	if err != nil {
		c.logger.Printf("completion: score lookup for map %d failed, assuming scored: %v", beatmapID, err)
		s.scored[beatmapID] = true
		return
	}
	s.scored[beatmapID] = exists
}

// RunFinished classifies a finished run and bumps the counter when it is new.
func (c *Classifier) RunFinished(beatmapID int) model.RunOutcome {
	if beatmapID <= 0 {
		return model.OutcomeIgnored
	}
	s := c.session
	if s.skip[beatmapID] {
		delete(s.skip, beatmapID)
		return model.OutcomeAssisted
	}

	exists, ok := s.scored[beatmapID]
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		var err error
		exists, err = c.checker.ScoreExists(ctx, beatmapID)
		if err != nil {
			c.logger.Printf("completion: score lookup for map %d failed, not counting: %v", beatmapID, err)
			return model.OutcomeLookupFailed
		}
	}
	if exists {
		s.scored[beatmapID] = true
		return model.OutcomeAlreadyScored
	}
	c.counter.Increment()
	s.scored[beatmapID] = true
	s.counted[beatmapID] = true
	c.logger.Printf("completion: map %d is a new completion (delta %d)", beatmapID, c.counter.Delta())
	return model.OutcomeCounted
}
