package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/store"
	"github.com/roach88/roomstore/internal/testutil"
)

// Harness holds the collaborators of one scenario run.
type Harness struct {
	engine   *engine.Engine
	registry *testutil.Registry
	sender   *testutil.Sender
	clients  map[string]*testutil.Client
}

// Run executes a scenario in a fresh in-memory database and returns the
// result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("create in-memory store: %w", err)
	}
	defer st.Close()

	return RunOn(context.Background(), st, scenario)
}

// RunOn executes a scenario against s. The store should be empty; records
// left by earlier runs show up in replays.
func RunOn(ctx context.Context, s record.Store, scenario *Scenario) (*Result, error) {
	h, err := newHarness(s, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result.Live = make(map[string]map[string]any, len(scenario.Live))
	for id := range scenario.Live {
		result.Live[id] = h.registry.Live(id).Snapshot()
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s record.Store, scenario *Scenario) (*Harness, error) {
	pol, err := scenario.Config.Policy()
	if err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	h := &Harness{
		registry: testutil.NewRegistry(),
		sender:   &testutil.Sender{},
		clients:  make(map[string]*testutil.Client, len(scenario.Clients)),
	}
	for _, name := range scenario.Clients {
		h.clients[name] = testutil.NewClient(name)
	}
	for room, members := range scenario.Rooms {
		for _, name := range members {
			h.registry.Join(room, h.clients[name])
		}
	}
	for id, vars := range scenario.Live {
		h.registry.Open(id, vars)
	}

	ids := make([]string, len(scenario.Steps))
	for i := range ids {
		ids[i] = correlationID(i)
	}

	opts := []engine.Option{
		engine.WithPolicy(pol),
		engine.WithFlags(scenario.Config.Flags()),
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.Config.DefaultRoom != "" {
		opts = append(opts, engine.WithDefaultRoom(scenario.Config.DefaultRoom))
	}
	h.engine = engine.New(s, h.registry, h.sender, opts...)
	return h, nil
}

// execute handles one step and appends its trace entry. Unexpected step
// outcomes are recorded on the result; only malformed steps return an error.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	ev, err := step.ToEvent()
	if err != nil {
		return err
	}

	h.sender.Reset()
	handleErr := h.engine.Handle(ctx, h.clients[step.Client], ev)

	entry := TraceEntry{
		Step:          i + 1,
		Client:        step.Client,
		Event:         step.Event,
		CorrelationID: correlationID(i),
		Error:         errorCode(handleErr),
	}
	for _, sent := range h.sender.Sent() {
		entry.Deliveries = append(entry.Deliveries, Delivery{To: sent.To, Packet: sent.Event.Packet()})
	}
	result.Trace = append(result.Trace, entry)

	switch {
	case step.ExpectError == "" && handleErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i+1, step.Event, handleErr))
	case step.ExpectError != "" && entry.Error != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %q", i+1, step.Event, step.ExpectError, entry.Error))
	}
	return nil
}

func correlationID(i int) string {
	return fmt.Sprintf("evt-%03d", i+1)
}

// errorCode returns the engine or store code of err, "UNKNOWN" for other
// errors and "" for nil.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var ee *engine.Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	var re *record.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "UNKNOWN"
}
