package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Trace is the full trace, printed for context.
	Trace []TraceEntry
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, entry := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", entry.Step, entry.Client, entry.Event)
		if entry.Error != "" {
			fmt.Fprintf(&buf, " error=%s", entry.Error)
		}
		buf.WriteString("\n")
		for _, d := range entry.Deliveries {
			fmt.Fprintf(&buf, "        -> %s %v\n", d.To, d.Packet)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDelivered:
		return assertDelivered(result, a)
	case AssertNotDelivered:
		return assertNotDelivered(result, a)
	case AssertDeliveryCount:
		return assertDeliveryCount(result, a)
	case AssertLiveVariable:
		return assertLiveVariable(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertDelivered(result *Result, a Assertion) error {
	for _, p := range result.DeliveriesTo(a.To) {
		if matchPacket(p, a.Packet) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s receives %v", a.To, a.Packet),
		Actual:   "no matching packet",
		Trace:    result.Trace,
	}
}

func assertNotDelivered(result *Result, a Assertion) error {
	for _, p := range result.DeliveriesTo(a.To) {
		if matchPacket(p, a.Packet) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s never receives %v", a.To, a.Packet),
				Actual:   fmt.Sprintf("received %v", p),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertDeliveryCount(result *Result, a Assertion) error {
	got := len(result.DeliveriesTo(a.To))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s receives %d packets", a.To, a.Count),
		Actual:   fmt.Sprintf("%d packets", got),
		Trace:    result.Trace,
	}
}

func assertLiveVariable(result *Result, a Assertion) error {
	vars, ok := result.Live[a.Room]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("live room %s", a.Room),
			Actual:   "room is not live",
			Trace:    result.Trace,
		}
	}
	v, ok := vars[a.Name]
	if !ok || !sameValue(v, a.Value) {
		actual := "absent"
		if ok {
			actual = fmt.Sprintf("%v", v)
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %v", a.Room, a.Name, a.Value),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}

// matchPacket reports whether every field of want is present in packet with
// an equal value.
func matchPacket(packet, want map[string]any) bool {
	for k, wv := range want {
		pv, ok := packet[k]
		if !ok || !sameValue(pv, wv) {
			return false
		}
	}
	return true
}

// sameValue compares values by their JSON form, so a json.Number read back
// from the store equals the int written in a scenario file and an origin
// struct equals the equivalent map.
func sameValue(a, b any) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ca, cb)
}

func canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
