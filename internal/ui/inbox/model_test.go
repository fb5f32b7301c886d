package inbox

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/present"
)

var first = []model.EmailSummary{
	{Sender: "billing@example.com", Subject: "Invoice #1", Category: model.CategoryFinance},
	{Sender: "boss@example.com", Subject: "Meeting at 3", Category: model.CategoryWork},
	{Sender: "shop@example.com", Subject: "Promo inside", Category: model.CategoryPromotions},
}

func TestEmptyStateBeforeFirstFetch(t *testing.T) {
	m := New(100, 20)
	assert.Contains(t, m.View(), "Nothing fetched yet.")
	assert.Equal(t, 0, m.Len())
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestSetSummariesShowsRowsInOrder(t *testing.T) {
	m := New(100, 20)
	m.SetSummaries(first)

	assert.Equal(t, 3, m.Len())
	out := m.View()
	for _, want := range []string{"From", "Subject", "Category", "Invoice #1", "Meeting at 3", "Promo inside", "Finance 1", "Work 1", "Promotions 1", "Others 0"} {
		assert.Contains(t, out, want)
	}

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, first[0], sel)
}

func TestSetSummariesReplacesAllRows(t *testing.T) {
	m := New(100, 20)
	m.SetSummaries(first)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})

	sel, _ := m.Selected()
	assert.Equal(t, first[1], sel)

	second := []model.EmailSummary{{Sender: "x@example.com", Subject: "hello", Category: model.CategoryOthers}}
	m.SetSummaries(second)

	assert.Equal(t, 1, m.Len())
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, second[0], sel)
	assert.NotContains(t, m.View(), "Invoice #1")
}

func TestSetSummariesCopiesInput(t *testing.T) {
	in := append([]model.EmailSummary(nil), first...)
	m := New(100, 20)
	m.SetSummaries(in)
	in[0].Subject = "changed"

	sel, _ := m.Selected()
	assert.Equal(t, "Invoice #1", sel.Subject)
}

func TestDetailLineFollowsCursor(t *testing.T) {
	long := []model.EmailSummary{
		{Sender: "accounts-receivable@billing.example.com", Subject: "Invoice #1 for the quarterly subscription", Category: model.CategoryFinance},
		{Sender: "boss@example.com", Subject: "Meeting at 3", Category: model.CategoryWork},
	}
	m := New(100, 20)
	m.SetSummaries(long)
	assert.Contains(t, m.renderDetail(), "accounts-receivable@billing.example.com · Invoice #1 for the quarterly subscription")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Contains(t, m.View(), "boss@example.com · Meeting at 3")

	m.Clear()
	assert.Empty(t, m.renderDetail())
}

func TestEmptyResultAndClear(t *testing.T) {
	m := New(100, 20)
	m.SetSummaries(nil)
	assert.Contains(t, m.View(), present.NoResultsNotice)

	m.SetSummaries(first)
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.NotContains(t, m.View(), "Invoice #1")
}

func TestColumnsFitWidth(t *testing.T) {
	cols := columns(100)
	require.Len(t, cols, 3)
	assert.Equal(t, categoryWidth, cols[2].Width)
	assert.Equal(t, 100-3*2, cols[0].Width+cols[1].Width+cols[2].Width)

	narrow := columns(10)
	assert.GreaterOrEqual(t, narrow[0].Width, minFromWidth)
}
