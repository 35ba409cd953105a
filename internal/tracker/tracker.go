// Package tracker runs the single event loop that joins telemetry, lookups, and
// reconciliation into one published overlay state.
package tracker

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/verte-zerg/osutrack/internal/completion"
	"github.com/verte-zerg/osutrack/internal/model"
	"github.com/verte-zerg/osutrack/internal/tosu"
)

const (
	inboxSize     = 256
	recentRuns    = 10
	journalWrite  = 2 * time.Second
	subscriberBuf = 1
)

// Journal records classified runs.
type Journal interface {
	InsertRun(ctx context.Context, rec model.RunRecord) (model.RunRecord, error)
}

// Emitter publishes completion events to an external stream.
type Emitter interface {
	EmitCompletion(rec model.RunRecord, progress model.Progress)
	EmitBaseline(b model.Baseline)
}

// Options configures a Tracker.
type Options struct {
	Conn            tosu.Options
	Checker         completion.ScoreChecker
	Fetcher         completion.BaselineFetcher
	Journal         Journal
	Emitter         Emitter
	LookupTimeout   time.Duration
	RefreshInterval time.Duration
	Logger          *log.Logger
}

// Tracker owns the state machine, the classifier, and all counter writes.
// Everything except Snapshot and Subscribe runs on the loop goroutine.
type Tracker struct {
	conn       *tosu.Conn
	machine    *tosu.Machine
	classifier *completion.Classifier
	counter    *completion.Counter
	reconciler *completion.Reconciler
	journal    Journal
	emitter    Emitter
	logger     *log.Logger
	now        func() time.Time

	inbox chan func()
	done  chan struct{}
	ctx   context.Context

	// Loop-owned.
	connected    bool
	hasConnected bool
	recent       []model.RunRecord

	mu      sync.RWMutex
	state   model.OverlayState
	subs    map[int]chan model.OverlayState
	nextSub int
	closed  bool
}

// New wires a Tracker. Nothing runs until Run.
func New(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	t := &Tracker{
		counter: completion.NewCounter(),
		journal: opts.Journal,
		emitter: opts.Emitter,
		logger:  logger,
		now:     time.Now,
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		subs:    make(map[int]chan model.OverlayState),
	}
	if opts.Conn.Logger == nil {
		opts.Conn.Logger = logger
	}
	t.conn = tosu.NewConn(opts.Conn, t)
	t.machine = tosu.NewMachine(t)
	t.classifier = completion.NewClassifier(opts.Checker, t.counter, completion.ClassifierOptions{
		Timeout: opts.LookupTimeout,
		Post:    t.post,
		Logger:  logger,
	})
	t.reconciler = completion.NewReconciler(opts.Fetcher, t.counter, completion.ReconcilerOptions{
		Interval:  opts.RefreshInterval,
		Post:      t.post,
		OnRefresh: t.onBaseline,
		Logger:    logger,
	})
	t.state = t.buildState()
	return t
}

// Run connects to telemetry, starts reconciliation, and handles events until
// ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	t.ctx = ctx
	go t.reconciler.Run(ctx)
	t.conn.Connect()

	for {
		select {
		case <-ctx.Done():
			close(t.done)
			t.conn.Disconnect()
			t.closeSubscribers()
			return nil
		case fn := <-t.inbox:
			fn()
			t.publish()
		}
	}
}

// post queues fn for the loop. After the loop has stopped fn is dropped.
func (t *Tracker) post(fn func()) {
	select {
	case t.inbox <- fn:
	case <-t.done:
	}
}

// Snapshot returns the most recently published state.
func (t *Tracker) Snapshot() model.OverlayState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Subscribe returns a channel that always holds the latest state. The channel
// is closed by cancel or when Run returns.
func (t *Tracker) Subscribe() (<-chan model.OverlayState, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan model.OverlayState, subscriberBuf)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	ch <- t.state
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

func (t *Tracker) publish() {
	state := t.buildState()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	for _, ch := range t.subs {
		// Replace a value the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

func (t *Tracker) closeSubscribers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Tracker) buildState() model.OverlayState {
	recent := make([]model.RunRecord, len(t.recent))
	copy(recent, t.recent)
	return model.OverlayState{
		Progress:  t.counter.Snapshot(),
		Connected: t.connected,
		State:     t.machine.Current(),
		Recent:    recent,
	}
}

// OnConnected implements tosu.Handler.
func (t *Tracker) OnConnected() {
	t.post(func() {
		t.connected = true
		t.machine.Reset()
		if t.hasConnected {
			// Cached knowledge was dropped with the old connection.
			go func() { _ = t.reconciler.Refresh(t.ctx) }()
		}
		t.hasConnected = true
	})
}

// OnDisconnected implements tosu.Handler.
func (t *Tracker) OnDisconnected() {
	t.post(func() {
		t.connected = false
		t.classifier.Reset()
		t.logger.Printf("tracker: telemetry disconnected, session caches cleared")
	})
}

// OnError implements tosu.Handler.
func (t *Tracker) OnError(err error) {
	t.logger.Printf("tracker: telemetry error: %v", err)
}

// OnFrame implements tosu.Handler.
func (t *Tracker) OnFrame(data []byte) {
	t.post(func() {
		msg, err := tosu.DecodeMessage(data)
		if err != nil {
			t.logger.Printf("tracker: dropping frame: %v", err)
			return
		}
		t.machine.Process(msg)
	})
}

// OnStateChanged implements tosu.Events. The state is published after the
// frame is handled.
func (t *Tracker) OnStateChanged(model.SimplifiedState) {}

// OnRunStarted implements tosu.Events.
func (t *Tracker) OnRunStarted(beatmapID int, mods *model.Mods) {
	t.logger.Printf("tracker: run started on map %d", beatmapID)
	t.classifier.RunStarted(beatmapID, mods)
}

// OnRunFinished implements tosu.Events.
func (t *Tracker) OnRunFinished(beatmapID int) {
	outcome := t.classifier.RunFinished(beatmapID)
	rec := model.RunRecord{
		SessionID:  t.classifier.Session().ID,
		BeatmapID:  beatmapID,
		Outcome:    outcome,
		FinishedAt: t.now(),
	}
	t.logger.Printf("tracker: run finished on map %d: %s", beatmapID, outcome)
	if t.journal != nil {
		ctx, cancel := context.WithTimeout(t.ctx, journalWrite)
		stored, err := t.journal.InsertRun(ctx, rec)
		cancel()
		if err != nil {
			t.logger.Printf("tracker: journal: %v", err)
		} else {
			rec = stored
		}
	}
	t.recent = append([]model.RunRecord{rec}, t.recent...)
	if len(t.recent) > recentRuns {
		t.recent = t.recent[:recentRuns]
	}
	if outcome == model.OutcomeCounted && t.emitter != nil {
		t.emitter.EmitCompletion(rec, t.counter.Snapshot())
	}
}

// onBaseline runs on the loop after the reconciler installed a baseline.
func (t *Tracker) onBaseline(b model.Baseline) {
	if t.emitter != nil {
		t.emitter.EmitBaseline(b)
	}
}
