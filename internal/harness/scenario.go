package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/policy"
	"github.com/roach88/roomstore/internal/replay"
)

// Scenario is a scripted session: clients join rooms, send events through
// the engine, and the packets they receive are checked.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Config switches features off and restricts rooms, using the same keys
	// as the service configuration.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Clients lists every username taking part.
	Clients []string `yaml:"clients"`

	// Rooms maps a room id to the clients that are members of it.
	Rooms map[string][]string `yaml:"rooms,omitempty"`

	// Live maps a live room or project id to its in-memory global variables.
	Live map[string]map[string]any `yaml:"live,omitempty"`

	// Steps run in order. Each step is one inbound event.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig mirrors the feature switches of the service configuration.
type ScenarioConfig struct {
	DisableBroadcastMessages  bool     `yaml:"disable_broadcast_messages"`
	DisablePrivateMessages    bool     `yaml:"disable_private_messages"`
	DisableBroadcastVariables bool     `yaml:"disable_broadcast_variables"`
	DisablePrivateVariables   bool     `yaml:"disable_private_variables"`
	DisableProjectVariables   bool     `yaml:"disable_project_variables"`
	EnabledRoomPatterns       []string `yaml:"enabled_room_patterns"`
	DisabledRoomPatterns      []string `yaml:"disabled_room_patterns"`
	DefaultRoom               string   `yaml:"default_room"`
}

// Flags returns the replay switches.
func (c ScenarioConfig) Flags() replay.Flags {
	return replay.Flags{
		DisableBroadcastMessages:  c.DisableBroadcastMessages,
		DisablePrivateMessages:    c.DisablePrivateMessages,
		DisableBroadcastVariables: c.DisableBroadcastVariables,
		DisablePrivateVariables:   c.DisablePrivateVariables,
		DisableProjectVariables:   c.DisableProjectVariables,
	}
}

// Policy compiles the room patterns.
func (c ScenarioConfig) Policy() (*policy.Policy, error) {
	return policy.New(c.EnabledRoomPatterns, c.DisabledRoomPatterns)
}

// Step is one inbound event sent by Client. Which fields are read depends on
// Event, which takes the protocol command name (see engine.EventName).
type Step struct {
	Client  string   `yaml:"client"`
	Event   string   `yaml:"event"`
	Room    string   `yaml:"room,omitempty"`
	Rooms   []string `yaml:"rooms,omitempty"`
	Target  string   `yaml:"target,omitempty"`
	Project string   `yaml:"project,omitempty"`
	Name    string   `yaml:"name,omitempty"`
	NewName string   `yaml:"new_name,omitempty"`
	Value   any      `yaml:"value,omitempty"`

	// ExpectError is the error code the step must fail with, either an
	// engine code such as INVALID_EVENT or a store code such as NOT_FOUND.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ToEvent converts the step into an engine event.
func (s Step) ToEvent() (engine.Event, error) {
	switch s.Event {
	case "client_identified":
		return engine.ClientIdentified{}, nil
	case "subscribe":
		return engine.SubscribeToRooms{Rooms: s.Rooms}, nil
	case "gmsg":
		return engine.BroadcastMessage{Room: s.Room, Value: s.Value}, nil
	case "pmsg":
		return engine.PrivateMessage{Room: s.Room, Target: s.Target, Value: s.Value}, nil
	case "gvar":
		return engine.BroadcastVariableSet{Room: s.Room, Name: s.Name, Value: s.Value}, nil
	case "pvar":
		return engine.PrivateVariableSet{Room: s.Room, Target: s.Target, Name: s.Name, Value: s.Value}, nil
	case "handshake":
		return engine.ProjectHandshake{ProjectID: s.Project}, nil
	case "create":
		return engine.ProjectVariableCreate{ProjectID: s.Project, Name: s.Name, Value: s.Value}, nil
	case "set":
		return engine.ProjectVariableSet{ProjectID: s.Project, Name: s.Name, Value: s.Value}, nil
	case "rename":
		return engine.ProjectVariableRename{ProjectID: s.Project, Name: s.Name, NewName: s.NewName}, nil
	case "delete":
		return engine.ProjectVariableDelete{ProjectID: s.Project, Name: s.Name}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", s.Event)
	}
}

// Assertion checks the packets delivered during a scenario or the live state
// left behind.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// To is the receiving username (delivered, not_delivered, delivery_count).
	To string `yaml:"to,omitempty"`

	// Packet is matched as a subset of the delivered packet's fields.
	Packet map[string]any `yaml:"packet,omitempty"`

	// Count is the exact number of packets To must receive (delivery_count).
	Count int `yaml:"count,omitempty"`

	// Room, Name and Value identify a live variable (live_variable).
	Room  string `yaml:"room,omitempty"`
	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertDelivered     = "delivered"
	AssertNotDelivered  = "not_delivered"
	AssertDeliveryCount = "delivery_count"
	AssertLiveVariable  = "live_variable"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Clients) == 0 {
		return fmt.Errorf("clients list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	known := make(map[string]bool, len(s.Clients))
	for _, c := range s.Clients {
		if known[c] {
			return fmt.Errorf("duplicate client %q", c)
		}
		known[c] = true
	}
	for room, members := range s.Rooms {
		for _, m := range members {
			if !known[m] {
				return fmt.Errorf("rooms[%s]: unknown client %q", room, m)
			}
		}
	}

	for i, step := range s.Steps {
		if !known[step.Client] {
			return fmt.Errorf("steps[%d]: unknown client %q", i, step.Client)
		}
		if _, err := step.ToEvent(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, known); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, clients map[string]bool) error {
	switch a.Type {
	case AssertDelivered, AssertNotDelivered:
		if !clients[a.To] {
			return fmt.Errorf("assertions[%d]: unknown client %q", index, a.To)
		}
		if len(a.Packet) == 0 {
			return fmt.Errorf("assertions[%d]: packet is required for %s", index, a.Type)
		}
	case AssertDeliveryCount:
		if !clients[a.To] {
			return fmt.Errorf("assertions[%d]: unknown client %q", index, a.To)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertLiveVariable:
		if a.Room == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: room and name are required for live_variable", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
