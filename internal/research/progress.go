package research

import (
	"time"
)

// Event is one best-effort progress record: phase transitions and counts.
// Events never carry source contents until finalization completes.
type Event struct {
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Loop      int       `json:"loop"`
	Count     int       `json:"count,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	At        time.Time `json:"at"`
}

// Event types emitted by the orchestrator.
const (
	EventPhase            = "phase"
	EventQueriesGenerated = "queries_generated"
	EventSourcesMerged    = "sources_merged"
	EventLoopComplete     = "loop_complete"
	EventFinalizing       = "finalizing"
)

// ProgressSink receives progress events. Implementations must not block;
// the orchestrator treats delivery as best effort.
type ProgressSink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// emit records the event on the session and forwards it to the sink.
func (o *Orchestrator) emit(s *Session, eventType string, count int) {
	ev := Event{
		SessionID: s.ID,
		Type:      eventType,
		Loop:      s.LoopIndex,
		Count:     count,
		Phase:     string(s.Phase),
		At:        time.Now(),
	}
	s.Events = append(s.Events, ev)
	o.sink.Emit(ev)
}
