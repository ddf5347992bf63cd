package hostloop

// BusEvent is one entry of the external append-only event log consumed
// during bus replay (spec.md §4.9 step 4).
type BusEvent struct {
	Seq     uint64
	Payload []byte
}

// BusLog is the append-only event source replayed idempotently on each
// step. Implementations must return events in ascending Seq order.
type BusLog interface {
	FetchSince(seq uint64) ([]BusEvent, error)
}

// NoopBusLog never has anything to replay; it lets the runtime exercise
// the replay step's watermark bookkeeping even with no durable event log
// wired in.
type NoopBusLog struct{}

func (NoopBusLog) FetchSince(seq uint64) ([]BusEvent, error) { return nil, nil }

var _ BusLog = NoopBusLog{}

// MemoryBusLog is an in-process, append-only BusLog, used by tests.
type MemoryBusLog struct {
	events []BusEvent
}

// Append records a new event with the next sequence number.
func (m *MemoryBusLog) Append(payload []byte) {
	m.events = append(m.events, BusEvent{Seq: uint64(len(m.events)) + 1, Payload: payload})
}

func (m *MemoryBusLog) FetchSince(seq uint64) ([]BusEvent, error) {
	var out []BusEvent
	for _, e := range m.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ BusLog = (*MemoryBusLog)(nil)
