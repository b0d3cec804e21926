package types

import "encoding/json"

// EventKind enumerates the event variants a test binary reports, one JSON
// message per line, plus a catch-all for message shapes this engine does not
// consume.
type EventKind int

const (
	// EventOther is any well-formed message whose (type, event) pair is not
	// one of the known variants. It is not a decode error.
	EventOther EventKind = iota
	EventSuiteStarted
	EventSuiteOk
	EventSuiteFailed
	EventTestOk
	EventTestFailed
	EventTestIgnored
)

func (k EventKind) String() string {
	switch k {
	case EventSuiteStarted:
		return "suite started"
	case EventSuiteOk:
		return "suite ok"
	case EventSuiteFailed:
		return "suite failed"
	case EventTestOk:
		return "test ok"
	case EventTestFailed:
		return "test failed"
	case EventTestIgnored:
		return "test ignored"
	default:
		return "other"
	}
}

// Event is one decoded message from a running test binary. Which fields are
// meaningful depends on Kind: Name is set for per-test events, TestCount for
// EventSuiteStarted, and Counts for the two terminal suite events.
type Event struct {
	Kind      EventKind
	Name      string
	TestCount int
	Counts    SuiteCounts
}

// wireMessage is the on-the-wire shape of a single line of structured test
// output. All known variants share this flat envelope.
type wireMessage struct {
	Type        string `json:"type"`
	Event       string `json:"event"`
	Name        string `json:"name"`
	TestCount   int    `json:"test_count"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	Ignored     int    `json:"ignored"`
	Measured    int    `json:"measured"`
	FilteredOut int    `json:"filtered_out"`
}

// DecodeEvent decodes one line of structured output into an Event. A line
// that is not valid JSON returns an error; a well-formed message of an
// unrecognized shape decodes to an EventOther event.
func DecodeEvent(line []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return Event{}, err
	}

	ev := Event{Name: msg.Name, TestCount: msg.TestCount}
	switch {
	case msg.Type == "suite" && msg.Event == "started":
		ev.Kind = EventSuiteStarted
	case msg.Type == "suite" && msg.Event == "ok":
		ev.Kind = EventSuiteOk
	case msg.Type == "suite" && msg.Event == "failed":
		ev.Kind = EventSuiteFailed
	case msg.Type == "test" && msg.Event == "ok":
		ev.Kind = EventTestOk
	case msg.Type == "test" && msg.Event == "failed":
		ev.Kind = EventTestFailed
	case msg.Type == "test" && msg.Event == "ignored":
		ev.Kind = EventTestIgnored
	default:
		ev.Kind = EventOther
	}

	if ev.Kind == EventSuiteOk || ev.Kind == EventSuiteFailed {
		ev.Counts = SuiteCounts{
			Passed:      msg.Passed,
			Failed:      msg.Failed,
			Ignored:     msg.Ignored,
			Measured:    msg.Measured,
			FilteredOut: msg.FilteredOut,
		}
	}

	return ev, nil
}
