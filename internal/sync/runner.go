package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/pipeline"
)

// FetchFunc runs one fetch cycle. *pipeline.Pipeline's Run satisfies it.
type FetchFunc func(ctx context.Context, cfg model.Config) (*pipeline.Result, error)

// FetchStartedMsg is a tea.Msg sent when a fetch cycle begins.
type FetchStartedMsg struct {
	Seq int
}

// FetchResultMsg is a tea.Msg sent when a fetch cycle completes, fails or
// is canceled. Exactly one of Result and Err is set.
type FetchResultMsg struct {
	Seq      int
	Result   *pipeline.Result
	Err      error
	Duration time.Duration
}

// Runner executes fetch cycles in the background, at most one at a time.
type Runner struct {
	fetch    FetchFunc
	resultCh chan FetchResultMsg
	mu       gosync.Mutex
	running  bool
	cancel   context.CancelFunc
	seq      int
}

// New creates a Runner around fetch.
func New(fetch FetchFunc) *Runner {
	return &Runner{
		fetch:    fetch,
		resultCh: make(chan FetchResultMsg, 1),
	}
}

// Start launches a fetch cycle for cfg and returns a tea.Cmd that waits
// for its result. It returns nil when a cycle is already in flight.
func (r *Runner) Start(cfg model.Config) tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	go r.run(ctx, cancel, seq, cfg)

	return tea.Batch(
		func() tea.Msg { return FetchStartedMsg{Seq: seq} },
		r.waitForResult(),
	)
}

// Running reports whether a fetch cycle is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Cancel aborts the in-flight fetch cycle, if any. The cycle still
// reports a FetchResultMsg carrying context.Canceled.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, seq int, cfg model.Config) {
	defer cancel()

	start := time.Now()
	res, err := r.fetch(ctx, cfg)
	if err != nil {
		res = nil
	}

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	r.resultCh <- FetchResultMsg{
		Seq:      seq,
		Result:   res,
		Err:      err,
		Duration: time.Since(start),
	}
}

// waitForResult returns a tea.Cmd that blocks until the next result
// arrives on the result channel.
func (r *Runner) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-r.resultCh
		if !ok {
			return nil
		}
		return result
	}
}
