package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/classify"
	"github.com/nhle/mailsort/internal/metrics"
	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/source"
	"github.com/nhle/mailsort/internal/source/email"
)

// Recorder persists the history of finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run model.Run) error
}

// Result is the outcome of a successful run.
type Result struct {
	// Summaries are in listing order, oldest of the selected window first.
	Summaries []model.EmailSummary

	// Listed is how many identifiers the mailbox reported.
	Listed int

	// Skipped holds the selected messages that could not be fetched or
	// parsed. They are absent from Summaries.
	Skipped []*source.FetchError
}

// Empty reports whether the run succeeded without producing any rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Summaries) == 0
}

// Pipeline runs the login, list, fetch, classify sequence for one mailbox.
type Pipeline struct {
	open     source.Opener
	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder
	textfile string
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records every run on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRecorder stores every run, successful or not, through r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithTextfile rewrites the node-exporter textfile at path after every
// run. It has no effect without WithMetrics.
func WithTextfile(path string) Option {
	return func(p *Pipeline) { p.textfile = path }
}

// New creates a Pipeline that opens sessions with open.
func New(open source.Opener, opts ...Option) *Pipeline {
	p := &Pipeline{
		open:   open,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SelectLast returns the trailing k identifiers of ids in their original
// order. Fewer than k identifiers are returned whole; k <= 0 selects none.
func SelectLast(ids []uint32, k int) []uint32 {
	if k <= 0 || len(ids) == 0 {
		return nil
	}
	if len(ids) > k {
		ids = ids[len(ids)-k:]
	}
	out := make([]uint32, len(ids))
	copy(out, ids)
	return out
}

// Run performs one fetch cycle. AuthError, ConnectionError, QueryError and
// context errors are terminal and return no result. Per-message failures
// are collected in Result.Skipped. The session is closed on every path.
func (p *Pipeline) Run(ctx context.Context, cfg model.Config) (res *Result, err error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	run := model.Run{
		StartedAt: p.now(),
		Server:    cfg.Server,
		Username:  cfg.Credentials.Username,
	}
	defer func() { p.finish(ctx, &run, res, err) }()

	log := p.logger.With(
		zap.String("server", cfg.Server),
		zap.String("username", cfg.Credentials.Username),
	)

	mb, err := p.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := mb.Close(); cerr != nil {
			log.Warn("closing mailbox session", zap.Error(cerr))
		}
	}()

	ids, err := mb.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	selected := SelectLast(ids, cfg.MaxMessages)
	log.Debug("messages listed",
		zap.Int("listed", len(ids)),
		zap.Int("selected", len(selected)),
	)

	result := &Result{
		Listed:    len(ids),
		Summaries: make([]model.EmailSummary, 0, len(selected)),
	}

	for _, id := range selected {
		summary, ferr := p.fetchOne(ctx, mb, id)
		if ferr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("skipping message", zap.Uint32("uid", id), zap.Error(ferr))
			result.Skipped = append(result.Skipped, ferr)
			continue
		}
		result.Summaries = append(result.Summaries, summary)
	}

	return result, nil
}

// fetchOne retrieves, decodes and classifies a single message.
func (p *Pipeline) fetchOne(
	ctx context.Context, mb source.Mailbox, id uint32,
) (model.EmailSummary, *source.FetchError) {
	resp, err := mb.Fetch(ctx, id)
	if err != nil {
		var fetchErr *source.FetchError
		if errors.As(err, &fetchErr) {
			return model.EmailSummary{}, fetchErr
		}
		return model.EmailSummary{}, &source.FetchError{ID: id, Err: err}
	}
	if !resp.HasPayload() {
		return model.EmailSummary{}, &source.FetchError{ID: id, Err: source.ErrNoPayload}
	}

	headers := email.ParseHeaders(resp.Raw)
	return classify.Summarize(headers.From, headers.Subject), nil
}

// finish completes the run record, then feeds metrics and history.
// Neither may fail the run.
func (p *Pipeline) finish(ctx context.Context, run *model.Run, res *Result, err error) {
	run.FinishedAt = p.now()
	run.Outcome = OutcomeOf(res, err)
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	if res != nil {
		run.Listed = res.Listed
		run.Fetched = len(res.Summaries)
		run.Skipped = len(res.Skipped)
		run.Summaries = res.Summaries
	}

	p.logger.Info("fetch run finished",
		zap.String("server", run.Server),
		zap.String("outcome", string(run.Outcome)),
		zap.Int("listed", run.Listed),
		zap.Int("fetched", run.Fetched),
		zap.Int("skipped", run.Skipped),
		zap.Duration("duration", run.Duration()),
	)

	p.metrics.ObserveRun(*run)
	if werr := p.metrics.WriteTextfile(p.textfile); werr != nil {
		p.logger.Warn("writing metrics textfile", zap.Error(werr))
	}

	if p.recorder != nil {
		if rerr := p.recorder.RecordRun(context.WithoutCancel(ctx), *run); rerr != nil {
			p.logger.Warn("recording run history", zap.Error(rerr))
		}
	}
}

// OutcomeOf classifies the return values of Run.
func OutcomeOf(res *Result, err error) model.Outcome {
	switch {
	case err == nil && res.Empty():
		return model.OutcomeEmpty
	case err == nil:
		return model.OutcomeOK
	case source.IsAuthError(err):
		return model.OutcomeAuthError
	case source.IsConnectionError(err):
		return model.OutcomeConnectionError
	case source.IsQueryError(err):
		return model.OutcomeQueryError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.OutcomeCanceled
	default:
		return model.OutcomeError
	}
}
