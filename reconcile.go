package inbox

import (
	"sort"
	"time"
)

type messageIdentity struct {
	text string
	unix int64
}

func identityOf(m Message) messageIdentity {
	return messageIdentity{text: m.Text, unix: m.Timestamp.Unix()}
}

// Reconcile merges a freshly fetched batch into existing and returns the new
// conversation state. Messages already present by (text, timestamp) are
// skipped, the union is stably sorted by timestamp, and the tail summary is
// recomputed. existing is never modified.
//
// Reconcile is idempotent, and batches with distinct timestamps may be
// applied in any order with the same result. A nil batch is a no-op merge.
func Reconcile(existing Conversation, incoming []Message) Conversation {
	merged := make([]Message, len(existing.Messages), len(existing.Messages)+len(incoming))
	copy(merged, existing.Messages)

	seen := make(map[messageIdentity]struct{}, cap(merged))
	for _, m := range merged {
		seen[identityOf(m)] = struct{}{}
	}
	for _, m := range incoming {
		if m.Text == "" {
			continue
		}
		m.Timestamp = m.Timestamp.Truncate(time.Second)
		id := identityOf(m)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, m)
	}
	sortMessages(merged)
	return existing.withMessages(merged)
}

// appendLocal adds an optimistic message. It reports false when an identical
// message was already present, in which case nothing changes.
func appendLocal(c Conversation, m Message) (Conversation, bool) {
	for _, existing := range c.Messages {
		if existing.SameAs(m) {
			return c, false
		}
	}
	return Reconcile(c, []Message{m}), true
}

// removeLocal removes exactly one self-authored message matching m by text and
// timestamp (and by ClientID when m has one). Other messages with the same
// text are left alone.
func removeLocal(c Conversation, m Message) (Conversation, bool) {
	for i, existing := range c.Messages {
		if existing.Sender != SenderSelf || !existing.SameAs(m) {
			continue
		}
		if m.ClientID != "" && existing.ClientID != m.ClientID {
			continue
		}
		msgs := make([]Message, 0, len(c.Messages)-1)
		msgs = append(msgs, c.Messages[:i]...)
		msgs = append(msgs, c.Messages[i+1:]...)
		return c.withMessages(msgs), true
	}
	return c, false
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
