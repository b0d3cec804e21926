package loomrun

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/loomrun/loomrun/types"
)

// SuiteSummary aggregates one suite's outcome for the final report.
type SuiteSummary struct {
	Suite         string
	Counts        types.SuiteCounts
	FailingCases  int
	CheckpointDir string
}

// PackageResult collects everything one package's workflow run produced.
type PackageResult struct {
	Package     string
	Suites      []SuiteSummary
	RerunErrors []error
	Duration    time.Duration
}

// Failed reports whether the package had any failing case or task error.
func (p *PackageResult) Failed() bool {
	if len(p.RerunErrors) > 0 {
		return true
	}
	for _, s := range p.Suites {
		if s.FailingCases > 0 {
			return true
		}
	}
	return false
}

// TotalFailing returns the number of failing cases across all suites.
func (p *PackageResult) TotalFailing() int {
	n := 0
	for _, s := range p.Suites {
		n += s.FailingCases
	}
	return n
}

// ResultFormatter is responsible for formatting and displaying workflow
// results.
type ResultFormatter interface {
	FormatResults(results []*PackageResult) error
}

// ConsoleResultFormatter renders results as a table on the console.
type ConsoleResultFormatter struct {
	cfg RenderConfig
	out io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(cfg RenderConfig, out io.Writer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{cfg: cfg, out: out}
}

// FormatResults formats and displays the workflow results.
func (f *ConsoleResultFormatter) FormatResults(results []*PackageResult) error {
	var totalDuration time.Duration
	totalFailing := 0
	anyFailed := false

	t := table.NewWriter()
	t.SetOutputMirror(f.out)

	t.AppendHeader(table.Row{
		"Package", "Suite", "Passed", "Failed", "Ignored", "Filtered", "Checkpoints",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Package", AutoMerge: true},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Ignored", Align: text.AlignRight},
		{Name: "Filtered", Align: text.AlignRight},
		{Name: "Checkpoints", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, pkg := range results {
		totalDuration += pkg.Duration
		totalFailing += pkg.TotalFailing()
		if pkg.Failed() {
			anyFailed = true
		}
		for _, s := range pkg.Suites {
			checkpointDir := ""
			if s.FailingCases > 0 {
				checkpointDir = s.CheckpointDir
			}
			t.AppendRow(table.Row{
				pkg.Package,
				s.Suite,
				s.Counts.Passed,
				s.Counts.Failed,
				s.Counts.Ignored,
				s.Counts.FilteredOut,
				checkpointDir,
			})
		}
		t.AppendSeparator()
	}

	if f.cfg.colorEnabled(f.out) {
		if anyFailed {
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		} else {
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", "", totalFailing, "", "", formatDuration(totalDuration),
	})

	t.SetTitle(fmt.Sprintf("Loom Testing Results (%s)", formatDuration(totalDuration)))
	t.Render()

	return nil
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
