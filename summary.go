package inbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultDelimiter separates individual messages in a summary's text field.
const DefaultDelimiter = "|||"

// Messages splits the summary's joined text into counterpart messages.
//
// The backend reports only the first and last instants of a thread, so the
// first part gets FirstAt, the last part gets LastAt, and every interior part
// also gets FirstAt. A single part gets LastAt. Interior timestamps are
// therefore imprecise until the backend returns per-message times.
//
// A null or blank text yields an empty batch. An unparsable timestamp yields
// an empty batch and an error describing why.
func (s Summary) Messages(delim string, loc *time.Location) ([]Message, error) {
	if s.Text == nil || strings.TrimSpace(*s.Text) == "" {
		return nil, nil
	}
	if delim == "" {
		delim = DefaultDelimiter
	}

	var parts []string
	for _, p := range strings.Split(*s.Text, delim) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	last, err := ParseTimestamp(s.LastAt, loc)
	if err != nil {
		return nil, fmt.Errorf("summary %s: lastAt: %w", s.Counterpart, err)
	}
	first := last
	if len(parts) > 1 {
		if first, err = ParseTimestamp(s.FirstAt, loc); err != nil {
			return nil, fmt.Errorf("summary %s: firstAt: %w", s.Counterpart, err)
		}
	}

	msgs := make([]Message, len(parts))
	for i, p := range parts {
		ts := first
		if i == len(parts)-1 {
			ts = last
		}
		msgs[i] = NewMessage(SenderCounterpart, p, ts)
	}
	return msgs, nil
}

// subject builds the Subject variant for a summary found under scope.
func (s Summary) subject(scope Scope) Subject {
	if scope == ScopeProduct {
		return ProductSubject{ProductRef: s.SubjectRef, ProductName: s.SubjectLabel}
	}
	return StoreSubject{}
}

// Message converts a reply record. Records without a sender are the seller's own replies.
func (r ReplyRecord) Message(loc *time.Location) (Message, error) {
	ts, err := ParseTimestamp(r.CreatedAt, loc)
	if err != nil {
		return Message{}, err
	}
	sender := SenderSelf
	if Sender(r.Sender) == SenderCounterpart {
		sender = SenderCounterpart
	}
	return NewMessage(sender, strings.TrimSpace(r.Text), ts), nil
}

// ── Tolerant list decoding ───────────────────────────────

// UnmarshalJSON decodes each summary on its own, so one corrupt entry does not
// cost the rest of the list. See SummaryList.Malformed.
func (l *SummaryList) UnmarshalJSON(data []byte) error {
	var raw struct {
		Product []json.RawMessage `json:"product"`
		Store   []json.RawMessage `json:"store"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = SummaryList{}
	l.Product = l.decodeEntries(ScopeProduct, raw.Product)
	l.Store = l.decodeEntries(ScopeStore, raw.Store)
	return nil
}

func (l *SummaryList) decodeEntries(scope Scope, entries []json.RawMessage) []Summary {
	out := make([]Summary, 0, len(entries))
	for i, e := range entries {
		var s Summary
		err := json.Unmarshal(e, &s)
		if err == nil {
			out = append(out, s)
			continue
		}
		salvaged, ok := salvageSummary(e)
		l.Malformed = append(l.Malformed, SummaryDecodeError{
			Scope: scope, Index: i, Counterpart: salvaged.Counterpart, Err: err,
		})
		if ok {
			out = append(out, salvaged)
		}
	}
	return out
}

// salvageSummary recovers the identity of a summary that failed to decode.
// The text is dropped, so the thread contributes an empty batch.
func salvageSummary(data json.RawMessage) (Summary, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Summary{}, false
	}
	s := Summary{MessageCount: -1}
	stringField := func(name string, dst *string) {
		if v, ok := fields[name]; ok {
			json.Unmarshal(v, dst) // a mistyped field stays empty
		}
	}
	stringField("counterpart", &s.Counterpart)
	stringField("subjectRef", &s.SubjectRef)
	stringField("subjectLabel", &s.SubjectLabel)
	if v, ok := fields["messageCount"]; ok {
		var n int
		if json.Unmarshal(v, &n) == nil {
			s.MessageCount = n
		}
	}
	return s, s.Counterpart != ""
}
