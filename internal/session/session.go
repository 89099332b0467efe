package session

import (
	"context"
	"fmt"
	"time"

	"github.com/deepfinance/chat-client/internal/models"
	"go.uber.org/zap"
)

// Directory is the REST collaborator that owns threads and history.
type Directory interface {
	ListThreads(ctx context.Context) ([]models.Thread, error)
	CreateThread(ctx context.Context, initialMessage string) (models.Thread, error)
	History(ctx context.Context, threadID string) ([]models.Message, error)
}

// Channel is the duplex connection used for live message delivery.
type Channel interface {
	Send(event string, payload any) error
}

const historyTimeout = 15 * time.Second

// Synchronizer owns the session state: the fetched thread list, the active
// thread id and the message store for that thread. All state mutation runs
// as discrete tasks on a single loop goroutine, so individual mutations
// never interleave. External goroutines (the channel read pump, directory
// call completions, user input) post closures onto the loop.
type Synchronizer struct {
	directory Directory
	channel   Channel
	logger    *zap.Logger

	tasks chan func()

	// Loop-confined state below.
	store          *MessageStore
	threads        []models.Thread
	activeThreadID string
	loadGen        uint64

	onIncoming func(models.Message)
	onHistory  func(threadID string, messages []models.Message)
}

func New(directory Directory, channel Channel, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		directory: directory,
		channel:   channel,
		logger:    logger,
		tasks:     make(chan func(), 64),
		store:     NewMessageStore(),
	}
}

// OnIncoming registers a callback invoked on the loop for every message the
// reconciler appends from an inbound frame.
func (s *Synchronizer) OnIncoming(f func(models.Message)) {
	s.onIncoming = f
}

// OnHistory registers a callback invoked on the loop after a history load is
// applied to the store.
func (s *Synchronizer) OnHistory(f func(threadID string, messages []models.Message)) {
	s.onHistory = f
}

// Run drains the task loop until ctx ends. It must be running for any other
// method to make progress.
func (s *Synchronizer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-s.tasks:
			task()
		}
	}
}

func (s *Synchronizer) post(task func()) {
	s.tasks <- task
}

// call posts a task and waits for it to run. Must not be used from the loop
// goroutine itself.
func (s *Synchronizer) call(task func()) {
	done := make(chan struct{})
	s.post(func() {
		task()
		close(done)
	})
	<-done
}

// HandleFrame is the channel's inbound-frame callback. It hands the raw
// frame to the reconciler on the loop.
func (s *Synchronizer) HandleFrame(data []byte) {
	s.post(func() { s.applyFrame(data) })
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Threads        []models.Thread
	ActiveThreadID string
	Messages       []models.Message
}

// Snapshot runs after all currently queued tasks and returns a copy of the
// session state.
func (s *Synchronizer) Snapshot() Snapshot {
	var snap Snapshot
	s.call(func() {
		snap = Snapshot{
			Threads:        append([]models.Thread(nil), s.threads...),
			ActiveThreadID: s.activeThreadID,
			Messages:       s.store.Messages(),
		}
	})
	return snap
}

// RefreshThreads fetches the thread list and applies it on the loop. On a
// non-empty result with no thread currently active, the first entry of the
// returned sequence becomes active. Failure leaves the directory state
// unchanged, stale but consistent.
func (s *Synchronizer) RefreshThreads(ctx context.Context) error {
	threads, err := s.directory.ListThreads(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch threads", zap.Error(err))
		return fmt.Errorf("refresh threads: %w", err)
	}

	s.post(func() {
		s.threads = threads
		if s.activeThreadID == "" && len(threads) > 0 {
			s.activate(threads[0].ID)
		}
	})
	return nil
}

// ActivateThread switches the active thread: the store is cleared and the
// thread's history is loaded.
func (s *Synchronizer) ActivateThread(threadID string) {
	s.post(func() { s.activate(threadID) })
}

// ResetThread clears the active thread so the next send starts a new
// conversation.
func (s *Synchronizer) ResetThread() {
	s.post(func() {
		s.activeThreadID = ""
		s.store.Clear()
		s.loadGen++
	})
}

// Reset drops the whole session state: thread list, active thread and
// message store. Used on logout, when nothing fetched under the old token
// should stay visible.
func (s *Synchronizer) Reset() {
	s.post(func() {
		s.threads = nil
		s.activeThreadID = ""
		s.store.Clear()
		s.loadGen++
	})
}

// activate runs on the loop. Bumping loadGen invalidates any history fetch
// still in flight for the previous thread: its result is applied only if the
// generation it captured still matches at resolution time.
func (s *Synchronizer) activate(threadID string) {
	s.activeThreadID = threadID
	s.store.Clear()
	s.loadGen++
	gen := s.loadGen

	go s.loadHistory(threadID, gen)
}

func (s *Synchronizer) loadHistory(threadID string, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	messages, err := s.directory.History(ctx, threadID)
	if err != nil {
		s.logger.Error("Failed to fetch history",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return
	}

	s.post(func() {
		if gen != s.loadGen {
			s.logger.Debug("Discarding stale history fetch",
				zap.String("thread_id", threadID))
			return
		}
		s.store.Load(messages)
		if s.onHistory != nil {
			s.onHistory(threadID, s.store.Messages())
		}
	})
}
