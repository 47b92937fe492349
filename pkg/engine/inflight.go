package engine

import (
	"time"

	"github.com/mcastelli/amqp10/internal/frames"
)

// inFlightEntry is one unsettled outbound transfer.
type inFlightEntry struct {
	message *frames.Message
	options SendOptions
	sentAt  time.Time
}

// inFlightTable tracks unsettled outbound transfers by delivery id.
// Entries exist from send until settlement or session teardown.
type inFlightTable struct {
	entries map[uint32]inFlightEntry
}

func (t *inFlightTable) add(id uint32, msg *frames.Message, opts SendOptions) {
	if t.entries == nil {
		t.entries = make(map[uint32]inFlightEntry)
	}
	t.entries[id] = inFlightEntry{message: msg, options: opts, sentAt: time.Now()}
}

// settle removes every tracked id in [first, last] and returns the ids
// removed with their in-flight latency. Ids in the range that are not
// tracked are skipped individually; settling an empty range is a no-op.
func (t *inFlightTable) settle(first, last uint32) []settledDelivery {
	var out []settledDelivery
	for id := first; ; id++ {
		if e, ok := t.entries[id]; ok {
			delete(t.entries, id)
			out = append(out, settledDelivery{id: id, latency: time.Since(e.sentAt)})
		}
		if id == last {
			break
		}
	}
	return out
}

func (t *inFlightTable) len() int {
	return len(t.entries)
}

func (t *inFlightTable) clear() {
	t.entries = nil
}

// settledDelivery reports one delivery removed by settle.
type settledDelivery struct {
	id      uint32
	latency time.Duration
}
