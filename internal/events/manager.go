package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager emits typed events onto the bus and logs them
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped publishes data under its own event type. Progress events are
// logged at trace level, everything else at debug.
func (m *Manager) EmitTyped(module string, data EventData) {
	eventType := data.EventType()
	m.bus.Emit(eventType, module, toMap(data))

	level := zerolog.DebugLevel
	if eventType == RunProgress {
		level = zerolog.TraceLevel
	}
	m.log.WithLevel(level).
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Event emitted")
}

func toMap(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
