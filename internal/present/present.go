package present

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/source"
	"github.com/nhle/mailsort/internal/theme"
)

// NoResultsNotice is shown when a run succeeds without any messages.
const NoResultsNotice = "No messages found."

// Columns are the headers shared by every presenter.
var Columns = []string{"From", "Subject", "Category"}

// report is the machine-readable document for json and yaml output.
type report struct {
	Messages []model.EmailSummary `json:"messages" yaml:"messages"`
	Skipped  int                  `json:"skipped" yaml:"skipped"`
}

// Write renders summaries to w in the given format. skipped is the number
// of selected messages that could not be fetched.
func Write(w io.Writer, format string, summaries []model.EmailSummary, skipped int) error {
	switch format {
	case model.FormatJSON:
		return writeJSON(w, summaries, skipped)
	case model.FormatYAML:
		return writeYAML(w, summaries, skipped)
	case model.FormatTable, "":
		return writeTable(w, summaries, skipped)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeTable(w io.Writer, summaries []model.EmailSummary, skipped int) error {
	if len(summaries) == 0 {
		if _, err := fmt.Fprintln(w, theme.InfoNoticeStyle.Render(NoResultsNotice)); err != nil {
			return err
		}
		return writeSkipped(w, skipped)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(Columns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.TableHeaderStyle
			case col == 2 && row >= 0 && row < len(summaries):
				return theme.CategoryStyle(string(summaries[row].Category)).Padding(0, 1)
			default:
				return theme.TableCellStyle
			}
		})

	for _, s := range summaries {
		t.Row(s.Sender, s.Subject, string(s.Category))
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	return writeSkipped(w, skipped)
}

func writeSkipped(w io.Writer, skipped int) error {
	if skipped == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, theme.WarnNoticeStyle.Render(SkippedNotice(skipped)))
	return err
}

func writeJSON(w io.Writer, summaries []model.EmailSummary, skipped int) error {
	if summaries == nil {
		summaries = []model.EmailSummary{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{Messages: summaries, Skipped: skipped}); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, summaries []model.EmailSummary, skipped int) error {
	if summaries == nil {
		summaries = []model.EmailSummary{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report{Messages: summaries, Skipped: skipped}); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// SkippedNotice words the partial-failure count.
func SkippedNotice(n int) string {
	if n == 1 {
		return "1 message could not be fetched and was skipped."
	}
	return fmt.Sprintf("%d messages could not be fetched and were skipped.", n)
}

// Describe turns a terminal run error into the notice shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case source.IsAuthError(err):
		return "Login failed: the server rejected the username or password."
	case source.IsConnectionError(err):
		var connErr *source.ConnectionError
		errors.As(err, &connErr)
		return fmt.Sprintf("Could not reach %s: %v", connErr.Addr, connErr.Err)
	case source.IsQueryError(err):
		var queryErr *source.QueryError
		errors.As(err, &queryErr)
		return fmt.Sprintf("The mailbox query failed (%s): %v", queryErr.Op, queryErr.Err)
	case errors.Is(err, context.Canceled):
		return "Fetch canceled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Fetch timed out."
	default:
		return fmt.Sprintf("Fetch failed: %v", err)
	}
}
