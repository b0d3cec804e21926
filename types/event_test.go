package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "suite started",
			line: `{"type":"suite","event":"started","test_count":3}`,
			want: Event{Kind: EventSuiteStarted, TestCount: 3},
		},
		{
			name: "suite ok with counts",
			line: `{"type":"suite","event":"ok","passed":2,"failed":0,"ignored":1,"measured":0,"filtered_out":4}`,
			want: Event{Kind: EventSuiteOk, Counts: SuiteCounts{Passed: 2, Ignored: 1, FilteredOut: 4}},
		},
		{
			name: "suite failed with counts",
			line: `{"type":"suite","event":"failed","passed":1,"failed":2,"ignored":0,"measured":0,"filtered_out":0}`,
			want: Event{Kind: EventSuiteFailed, Counts: SuiteCounts{Passed: 1, Failed: 2}},
		},
		{
			name: "test ok",
			line: `{"type":"test","event":"ok","name":"buffer::basic_usage"}`,
			want: Event{Kind: EventTestOk, Name: "buffer::basic_usage"},
		},
		{
			name: "test failed",
			line: `{"type":"test","event":"failed","name":"buffer::drop_full"}`,
			want: Event{Kind: EventTestFailed, Name: "buffer::drop_full"},
		},
		{
			name: "test ignored",
			line: `{"type":"test","event":"ignored","name":"buffer::slow"}`,
			want: Event{Kind: EventTestIgnored, Name: "buffer::slow"},
		},
		{
			name: "test started is other",
			line: `{"type":"test","event":"started","name":"buffer::basic_usage"}`,
			want: Event{Kind: EventOther, Name: "buffer::basic_usage"},
		},
		{
			name: "unknown type is other",
			line: `{"type":"bench","event":"ok","name":"buffer::speed"}`,
			want: Event{Kind: EventOther, Name: "buffer::speed"},
		},
		{
			name: "unknown fields are ignored",
			line: `{"type":"test","event":"failed","name":"a","exec_time":1.5,"stdout":"boom"}`,
			want: Event{Kind: EventTestFailed, Name: "a"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not json", line: "thread 'main' panicked at src/lib.rs:10"},
		{name: "truncated", line: `{"type":"test","event":`},
		{name: "wrong shape", line: `["type","test"]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.line))
			require.Error(t, err)
		})
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "suite started", EventSuiteStarted.String())
	assert.Equal(t, "test failed", EventTestFailed.String())
	assert.Equal(t, "other", EventOther.String())
}

func TestFailingCasePrettyName(t *testing.T) {
	c := FailingCase{Suite: "buffer_tests", Test: "drop_full"}
	assert.Equal(t, "buffer_tests::drop_full", c.PrettyName())
}

func TestSuiteBinaryName(t *testing.T) {
	s := TestSuite{Name: "buffer_tests", Path: "/ws/target/debug/deps/buffer_tests-8fe1a2"}
	assert.Equal(t, "buffer_tests-8fe1a2", s.BinaryName())
}
