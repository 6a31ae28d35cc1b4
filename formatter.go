package harness

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"

	"github.com/lightci/standalone-runner/runner"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *runner.Result)
}

// ConsoleResultFormatter renders the Ran/Skipped report as a console table.
type ConsoleResultFormatter struct {
	logger zerolog.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to stdout.
func NewConsoleResultFormatter(logger zerolog.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{logger: logger, out: os.Stdout}
}

// FormatResults prints one row per discovered test, in discovery order,
// followed by a totals footer. It is called on every exit path so buffered
// status is never lost.
func (f *ConsoleResultFormatter) FormatResults(result *runner.Result) {
	f.logger.Info().Msg("printing results")

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Standalone Test Report (%s)", formatDuration(result.Duration())))

	t.AppendHeader(table.Row{"Test", "Status", "Exit"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Exit", Align: text.AlignRight},
	})

	for _, rec := range result.Records() {
		t.AppendRow(table.Row{
			string(rec.ID),
			statusString(rec),
			exitString(rec),
		})
	}

	stats := result.Stats()
	style := table.StyleColoredBlackOnGreenWhite
	if stats.Failed > 0 {
		style = table.StyleColoredBlackOnRedWhite
	}
	// The colored styles uppercase footers; totals read as written.
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)

	t.AppendFooter(table.Row{
		fmt.Sprintf("TOTAL %d (ran %d, skipped %d, failed %d)",
			stats.Total, stats.Ran, stats.Skipped, stats.Failed),
		"",
		"",
	})

	t.Render()
}

// statusString returns a human-readable marker for a record.
func statusString(rec runner.ExecutionRecord) string {
	switch {
	case rec.Status == runner.StatusSkipped:
		return "- skipped"
	case rec.Failed():
		return "✗ ran (failed)"
	default:
		return "✓ ran"
	}
}

func exitString(rec runner.ExecutionRecord) string {
	if rec.ExitCode == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *rec.ExitCode)
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
