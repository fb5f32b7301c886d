package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/pipeline"
)

// collect runs a batched Start command and returns its messages.
func collect(t *testing.T, cmd tea.Cmd) (FetchStartedMsg, FetchResultMsg) {
	t.Helper()
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok, "Start should return a batch")
	require.Len(t, batch, 2)

	started, ok := batch[0]().(FetchStartedMsg)
	require.True(t, ok)

	done := make(chan tea.Msg, 1)
	go func() { done <- batch[1]() }()

	select {
	case msg := <-done:
		result, ok := msg.(FetchResultMsg)
		require.True(t, ok)
		return started, result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fetch result")
	}
	return started, FetchResultMsg{}
}

func TestRunnerDeliversResult(t *testing.T) {
	want := &pipeline.Result{
		Summaries: []model.EmailSummary{{Sender: "a@b", Subject: "promo", Category: model.CategoryPromotions}},
		Listed:    1,
	}
	var gotCfg model.Config
	r := New(func(_ context.Context, cfg model.Config) (*pipeline.Result, error) {
		gotCfg = cfg
		return want, nil
	})

	started, result := collect(t, r.Start(model.Config{Server: "imap.example.com:993", MaxMessages: 5}))

	assert.Equal(t, 1, started.Seq)
	assert.Equal(t, 1, result.Seq)
	assert.NoError(t, result.Err)
	assert.Same(t, want, result.Result)
	assert.Equal(t, 5, gotCfg.MaxMessages)
	assert.False(t, r.Running())
}

func TestRunnerRejectsConcurrentStart(t *testing.T) {
	release := make(chan struct{})
	r := New(func(ctx context.Context, _ model.Config) (*pipeline.Result, error) {
		<-release
		return &pipeline.Result{}, nil
	})

	first := r.Start(model.Config{})
	require.NotNil(t, first)
	assert.True(t, r.Running())
	assert.Nil(t, r.Start(model.Config{}), "second start while running must be ignored")

	close(release)
	_, result := collect(t, first)
	assert.NoError(t, result.Err)

	second := r.Start(model.Config{})
	require.NotNil(t, second)
	started, _ := collect(t, second)
	assert.Equal(t, 2, started.Seq)
}

func TestRunnerCancel(t *testing.T) {
	entered := make(chan struct{})
	r := New(func(ctx context.Context, _ model.Config) (*pipeline.Result, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	cmd := r.Start(model.Config{})
	<-entered
	r.Cancel()

	_, result := collect(t, cmd)
	assert.True(t, errors.Is(result.Err, context.Canceled))
	assert.Nil(t, result.Result)
	assert.False(t, r.Running())
}

func TestRunnerCancelIdle(t *testing.T) {
	r := New(func(context.Context, model.Config) (*pipeline.Result, error) {
		return &pipeline.Result{}, nil
	})
	assert.NotPanics(t, r.Cancel)
}

func TestRunnerDropsResultOnError(t *testing.T) {
	r := New(func(context.Context, model.Config) (*pipeline.Result, error) {
		return &pipeline.Result{Listed: 3}, errors.New("boom")
	})

	_, result := collect(t, r.Start(model.Config{}))
	assert.EqualError(t, result.Err, "boom")
	assert.Nil(t, result.Result)
}
