package loomrun

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/loomrun/loomrun/types"
)

// ColorMode controls when colored output is used.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses a --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// MessageFormat selects human-readable rendering or raw JSON re-emission.
type MessageFormat int

const (
	FormatHuman MessageFormat = iota
	FormatJSON
)

// ParseMessageFormat parses a --message-format flag value.
func ParseMessageFormat(s string) (MessageFormat, error) {
	switch s {
	case "human", "":
		return FormatHuman, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatHuman, fmt.Errorf("invalid message format %q: must be human or json", s)
	}
}

// RenderConfig is the immutable rendering configuration decided once at
// startup and threaded explicitly through every component that renders
// output. There is no process-global mode: two renderers with different
// configurations can coexist in one process.
type RenderConfig struct {
	Color  ColorMode
	Format MessageFormat
}

// colorEnabled resolves the color decision for a writer. Auto colors only
// when the writer is a terminal.
func (c RenderConfig) colorEnabled(w io.Writer) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Reporter renders discovery events and re-run output for humans (or
// re-emits the wire messages as JSON). It implements runner.EventObserver.
type Reporter struct {
	cfg      RenderConfig
	out      io.Writer // progress stream, conventionally stderr
	results  io.Writer // re-run output stream, conventionally stdout
	colorize bool
}

// NewReporter builds a reporter writing progress to out and re-run results
// to results.
func NewReporter(cfg RenderConfig, out, results io.Writer) *Reporter {
	return &Reporter{
		cfg:      cfg,
		out:      out,
		results:  results,
		colorize: cfg.colorEnabled(out),
	}
}

func (r *Reporter) paint(colors text.Colors, s string) string {
	if !r.colorize {
		return s
	}
	return colors.Sprint(s)
}

func (r *Reporter) testStatus(name, status string, colors text.Colors) {
	fmt.Fprintf(r.out, "test %s ... %s\n", name, r.paint(colors, status))
}

// ObserveEvent renders one decoded discovery event.
func (r *Reporter) ObserveEvent(suite types.TestSuite, ev types.Event, raw string, elapsed time.Duration) {
	if r.cfg.Format == FormatJSON {
		fmt.Fprintln(r.out, raw)
		return
	}

	switch ev.Kind {
	case types.EventSuiteStarted:
		fmt.Fprintf(r.out, "\nrunning %d tests\n", ev.TestCount)
	case types.EventTestOk:
		r.testStatus(ev.Name, "ok", text.Colors{text.FgGreen})
	case types.EventTestFailed:
		r.testStatus(ev.Name, "failed", text.Colors{text.FgRed})
	case types.EventTestIgnored:
		r.testStatus(ev.Name, "ignored", text.Colors{text.FgYellow})
	case types.EventSuiteOk:
		c := ev.Counts
		fmt.Fprintf(r.out, "\ntest result: ok. %d passed; %d failed; %d ignored; %d measured; %d filtered out; finished in %s\n",
			c.Passed, c.Failed, c.Ignored, c.Measured, c.FilteredOut, elapsed.Round(time.Millisecond))
	case types.EventSuiteFailed:
		c := ev.Counts
		fmt.Fprintf(r.out, "\ntest result: %s. %d passed; %d failed; %d ignored; %d measured; %d filtered out; finished in %s\n",
			r.paint(text.Colors{text.FgRed}, "FAILED"),
			c.Passed, c.Failed, c.Ignored, c.Measured, c.FilteredOut, elapsed.Round(time.Millisecond))
	}
}

// ObserveRecovered renders the tests recovered from a prior run's
// checkpoints as already-failing.
func (r *Reporter) ObserveRecovered(suite types.TestSuite, tests []string) {
	if r.cfg.Format == FormatJSON {
		return
	}
	fmt.Fprintln(r.out, "\npreviously checkpointed")
	for _, test := range tests {
		r.testStatus(test, "failed", text.Colors{text.FgRed})
	}
}

// PrintRerunResult writes one completed re-run's captured output. Output
// that is not valid text is surfaced as that case's error without touching
// other results.
func (r *Reporter) PrintRerunResult(result *types.RerunResult) error {
	if result.Err != nil {
		return result.Err
	}
	stdout, err := result.StdoutText()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.results, "\n --- test %s ---\n\n%s\n", result.Name, stdout)
	return err
}
