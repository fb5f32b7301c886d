package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/theme"
)

// NoRunsNotice is shown when the history database holds no runs.
const NoRunsNotice = "No runs recorded."

// runRecord is the machine-readable form of one history entry.
type runRecord struct {
	ID        string        `json:"id" yaml:"id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  string        `json:"duration" yaml:"duration"`
	Server    string        `json:"server" yaml:"server"`
	Username  string        `json:"username" yaml:"username"`
	Outcome   model.Outcome `json:"outcome" yaml:"outcome"`
	Listed    int           `json:"listed" yaml:"listed"`
	Fetched   int           `json:"fetched" yaml:"fetched"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// runDetail is one run together with the messages it classified.
type runDetail struct {
	runRecord `yaml:",inline"`
	Messages  []model.EmailSummary `json:"messages" yaml:"messages"`
}

func toRecord(r model.Run) runRecord {
	return runRecord{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration().Round(time.Millisecond).String(),
		Server:    r.Server,
		Username:  r.Username,
		Outcome:   r.Outcome,
		Listed:    r.Listed,
		Fetched:   r.Fetched,
		Skipped:   r.Skipped,
		Error:     r.ErrorMessage,
	}
}

// WriteRuns renders run history, newest first as given, in format.
func WriteRuns(w io.Writer, format string, runs []model.Run) error {
	switch format {
	case model.FormatJSON, model.FormatYAML:
		records := make([]runRecord, len(runs))
		for i, r := range runs {
			records[i] = toRecord(r)
		}
		return encode(w, format, records)
	case model.FormatTable, "":
		return writeRunsTable(w, runs)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteRun renders a single run and the messages it classified.
func WriteRun(w io.Writer, format string, run model.Run) error {
	switch format {
	case model.FormatJSON, model.FormatYAML:
		messages := run.Summaries
		if messages == nil {
			messages = []model.EmailSummary{}
		}
		return encode(w, format, runDetail{runRecord: toRecord(run), Messages: messages})
	case model.FormatTable, "":
		if err := writeRunsTable(w, []model.Run{run}); err != nil {
			return err
		}
		if run.ErrorMessage != "" {
			_, err := fmt.Fprintln(w, theme.ErrorNoticeStyle.Render(run.ErrorMessage))
			return err
		}
		return writeTable(w, run.Summaries, run.Skipped)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func encode(w io.Writer, format string, v any) error {
	if format == model.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func writeRunsTable(w io.Writer, runs []model.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, theme.InfoNoticeStyle.Render(NoRunsNotice))
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "Started", "Outcome", "Account", "Listed", "Fetched", "Skipped", "Took").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.TableHeaderStyle
			case col == 2 && row >= 0 && row < len(runs):
				return outcomeStyle(runs[row].Outcome)
			default:
				return theme.TableCellStyle
			}
		})

	for _, r := range runs {
		t.Row(
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Outcome),
			r.Username+"@"+r.Server,
			strconv.Itoa(r.Listed),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Skipped),
			r.Duration().Round(time.Millisecond).String(),
		)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func outcomeStyle(o model.Outcome) lipgloss.Style {
	switch o {
	case model.OutcomeOK:
		return theme.TableCellStyle.Foreground(theme.ColorGreen)
	case model.OutcomeEmpty, model.OutcomeCanceled:
		return theme.TableCellStyle.Foreground(theme.ColorYellow)
	default:
		return theme.TableCellStyle.Foreground(theme.ColorRed)
	}
}
