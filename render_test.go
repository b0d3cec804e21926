package loomrun

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomrun/loomrun/types"
)

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorMode
		wantErr bool
	}{
		{in: "auto", want: ColorAuto},
		{in: "", want: ColorAuto},
		{in: "always", want: ColorAlways},
		{in: "never", want: ColorNever},
		{in: "rainbow", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseColorMode(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseMessageFormat(t *testing.T) {
	got, err := ParseMessageFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = ParseMessageFormat("xml")
	require.Error(t, err)
}

// Two reporters with different color configurations must be able to render
// concurrently in one process without affecting each other.
func TestReportersWithDifferentColorModesCoexist(t *testing.T) {
	var plain, colored bytes.Buffer
	plainReporter := NewReporter(RenderConfig{Color: ColorNever}, &plain, &plain)
	coloredReporter := NewReporter(RenderConfig{Color: ColorAlways}, &colored, &colored)

	suite := types.TestSuite{Name: "buffer_tests"}
	ev := types.Event{Kind: types.EventTestFailed, Name: "drop_full"}
	plainReporter.ObserveEvent(suite, ev, "", 0)
	coloredReporter.ObserveEvent(suite, ev, "", 0)

	assert.Equal(t, "test drop_full ... failed\n", plain.String())
	assert.Contains(t, colored.String(), "\x1b[")
}

func TestReporterHumanRendering(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(RenderConfig{Color: ColorNever}, &out, &out)
	suite := types.TestSuite{Name: "buffer_tests"}

	r.ObserveEvent(suite, types.Event{Kind: types.EventSuiteStarted, TestCount: 2}, "", 0)
	r.ObserveEvent(suite, types.Event{Kind: types.EventTestOk, Name: "basic_usage"}, "", 0)
	r.ObserveEvent(suite, types.Event{Kind: types.EventTestIgnored, Name: "slow"}, "", 0)
	r.ObserveEvent(suite, types.Event{
		Kind:   types.EventSuiteFailed,
		Counts: types.SuiteCounts{Passed: 1, Failed: 1},
	}, "", 1500*time.Millisecond)

	got := out.String()
	assert.Contains(t, got, "running 2 tests\n")
	assert.Contains(t, got, "test basic_usage ... ok\n")
	assert.Contains(t, got, "test slow ... ignored\n")
	assert.Contains(t, got, "test result: FAILED. 1 passed; 1 failed; 0 ignored; 0 measured; 0 filtered out; finished in 1.5s\n")
}

// JSON mode re-emits the raw wire messages untouched.
func TestReporterJSONRendering(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(RenderConfig{Color: ColorNever, Format: FormatJSON}, &out, &out)

	raw := `{"type":"test","event":"ok","name":"basic_usage"}`
	r.ObserveEvent(types.TestSuite{Name: "buffer_tests"},
		types.Event{Kind: types.EventTestOk, Name: "basic_usage"}, raw, 0)

	assert.Equal(t, raw+"\n", out.String())
}

func TestReporterObserveRecovered(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(RenderConfig{Color: ColorNever}, &out, &out)

	r.ObserveRecovered(types.TestSuite{Name: "buffer_tests"}, []string{"drop_full"})

	got := out.String()
	assert.Contains(t, got, "previously checkpointed")
	assert.Contains(t, got, "test drop_full ... failed\n")
}

func TestPrintRerunResult(t *testing.T) {
	var progress, results bytes.Buffer
	r := NewReporter(RenderConfig{Color: ColorNever}, &progress, &results)

	err := r.PrintRerunResult(&types.RerunResult{
		Name:     "buffer_tests::drop_full",
		Stdout:   []byte("exploration depth 4"),
		ExitCode: 101,
	})
	require.NoError(t, err)
	assert.Equal(t, "\n --- test buffer_tests::drop_full ---\n\nexploration depth 4\n", results.String())
	assert.Empty(t, progress.String())
}

func TestPrintRerunResultInvalidUTF8(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(RenderConfig{Color: ColorNever}, &out, &out)

	err := r.PrintRerunResult(&types.RerunResult{
		Name:   "buffer_tests::drop_full",
		Stdout: []byte{0xff, 0xfe},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not utf8")
}
