package inbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error reported by the inbox backend.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Result is the generic backend response envelope.
type Result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Decode unmarshals the Data field into the provided type.
func (r *Result) Decode(v interface{}) error {
	if r.Data == nil || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// err returns the envelope's error, or nil when the call succeeded.
func (r *Result) err(op string) error {
	if r.OK {
		return nil
	}
	if r.Error != nil {
		return fmt.Errorf("%s: %w", op, r.Error)
	}
	return fmt.Errorf("%s: request failed", op)
}

// ============================================================================
// Enums
// ============================================================================

// Sender identifies who authored a message, from the seller's point of view.
type Sender string

const (
	// SenderCounterpart is the customer (product scope) or the store (store scope).
	SenderCounterpart Sender = "counterpart"
	// SenderSelf is the seller using this client.
	SenderSelf Sender = "self"
)

// Scope discriminates product-bound from store-bound conversations.
type Scope string

const (
	ScopeProduct Scope = "product"
	ScopeStore   Scope = "store"
)

// Scopes lists every scope in display order.
var Scopes = []Scope{ScopeProduct, ScopeStore}

// ParseScope converts user or wire input into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeProduct:
		return ScopeProduct, nil
	case ScopeStore:
		return ScopeStore, nil
	}
	return "", fmt.Errorf("unknown scope %q (valid: product, store)", s)
}

// ============================================================================
// Timestamps
// ============================================================================

// ServerTimeLayout is the layout the backend uses for message timestamps.
const ServerTimeLayout = "2006-01-02 15:04:05"

var timeLayouts = []string{ServerTimeLayout, time.RFC3339Nano, time.RFC3339}

// ParseTimestamp normalizes a server timestamp to a second-resolution instant.
// Values without a zone are read in loc (UTC when loc is nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ============================================================================
// Message
// ============================================================================

// Message is an immutable chat line. Two messages are the same message when
// their Text and Timestamp are equal; Sender and ClientID are not compared.
// Two identical texts sent within the same second therefore collapse into one.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	// ClientID is only set on messages authored by this client.
	ClientID string `json:"clientId,omitempty"`
}

// NewMessage builds a message with its timestamp truncated to the second.
func NewMessage(sender Sender, text string, ts time.Time) Message {
	return Message{Sender: sender, Text: text, Timestamp: ts.Truncate(time.Second)}
}

// SameAs reports whether m and o are the same message under the (text, timestamp) identity.
func (m Message) SameAs(o Message) bool {
	return m.Text == o.Text && m.Timestamp.Equal(o.Timestamp)
}

// ============================================================================
// Subjects (what a conversation is about)
// ============================================================================

// StoreSubjectLabel is the constant label shown for store-scoped threads.
const StoreSubjectLabel = "Store inquiry"

// Subject is implemented only by ProductSubject and StoreSubject. The variant
// fixes the conversation's scope and the backend form a reply is routed to.
type Subject interface {
	Scope() Scope
	Ref() string
	Label() string
	replyForm(counterpart, text string) ReplyForm
}

// ProductSubject binds a conversation to one product.
type ProductSubject struct {
	ProductRef  string
	ProductName string
}

func (p ProductSubject) Scope() Scope  { return ScopeProduct }
func (p ProductSubject) Ref() string   { return p.ProductRef }
func (p ProductSubject) Label() string { return p.ProductName }

func (p ProductSubject) replyForm(counterpart, text string) ReplyForm {
	return ReplyForm{Scope: ScopeProduct, Counterpart: counterpart, ProductID: p.ProductRef, Text: text}
}

// StoreSubject binds a conversation to the store as a whole.
type StoreSubject struct{}

func (StoreSubject) Scope() Scope  { return ScopeStore }
func (StoreSubject) Ref() string   { return "" }
func (StoreSubject) Label() string { return StoreSubjectLabel }

func (StoreSubject) replyForm(counterpart, text string) ReplyForm {
	return ReplyForm{Scope: ScopeStore, Counterpart: counterpart, Text: text}
}

// ReplyForm is the payload of a reply. Scope is always set; the backend files
// the message by it.
type ReplyForm struct {
	Scope       Scope  `json:"scope"`
	Counterpart string `json:"counterpart"`
	ProductID   string `json:"productId,omitempty"`
	Text        string `json:"text"`
}

// ============================================================================
// Conversation
// ============================================================================

var conversationNamespace = uuid.MustParse("6f1c3a52-8d4e-4b8a-9c57-2f0e1d9b7a44")

// ConversationKey is the identity a conversation is matched by on refresh.
// Store-scoped keys never carry a SubjectRef.
type ConversationKey struct {
	Scope       Scope
	Counterpart string
	SubjectRef  string
}

// ID derives the stable surrogate identifier for the key.
func (k ConversationKey) ID() string {
	name := string(k.Scope) + "\x00" + k.Counterpart
	if k.Scope == ScopeProduct {
		name += "\x00" + k.SubjectRef
	}
	return uuid.NewSHA1(conversationNamespace, []byte(name)).String()
}

// Conversation is one thread between the seller and a counterpart.
type Conversation struct {
	ID          string
	Counterpart string
	Subject     Subject
	// Messages is sorted ascending by Timestamp and holds no duplicates.
	Messages      []Message
	LastMessage   string
	LastTimestamp time.Time
	// MessageCount is the server-reported total, used for badges only.
	MessageCount int
}

// NewConversation creates an empty conversation for counterpart about subject.
func NewConversation(counterpart string, subject Subject) Conversation {
	c := Conversation{Counterpart: counterpart, Subject: subject}
	c.ID = c.Key().ID()
	return c
}

// Scope returns the conversation's scope.
func (c Conversation) Scope() Scope {
	if c.Subject == nil {
		return ""
	}
	return c.Subject.Scope()
}

// Key returns the conversation's identity key.
func (c Conversation) Key() ConversationKey {
	k := ConversationKey{Scope: c.Scope(), Counterpart: c.Counterpart}
	if c.Subject != nil {
		k.SubjectRef = c.Subject.Ref()
	}
	return k
}

// ReplyForm builds the routed backend form for a reply into this thread.
func (c Conversation) ReplyForm(text string) ReplyForm {
	return c.Subject.replyForm(c.Counterpart, text)
}

// withMessages returns a copy of c holding msgs, with the tail summary recomputed.
func (c Conversation) withMessages(msgs []Message) Conversation {
	c.Messages = msgs
	c.LastMessage = ""
	c.LastTimestamp = time.Time{}
	if n := len(msgs); n > 0 {
		c.LastMessage = msgs[n-1].Text
		c.LastTimestamp = msgs[n-1].Timestamp
	}
	return c
}

// clone returns a deep copy of c so callers can't alias store state.
func (c Conversation) clone() Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}

// ============================================================================
// Wire Types
// ============================================================================

// SummaryList is the response of the conversation summaries endpoint.
type SummaryList struct {
	Product []Summary `json:"product"`
	Store   []Summary `json:"store"`
	// Malformed records entries that did not decode. Those with a usable
	// counterpart are still listed above, with no text.
	Malformed []SummaryDecodeError `json:"-"`
}

// SummaryDecodeError describes one summary entry that did not decode.
type SummaryDecodeError struct {
	Scope       Scope
	Index       int
	Counterpart string
	Err         error
}

func (e SummaryDecodeError) Error() string {
	return fmt.Sprintf("%s summary #%d (%s): %v", e.Scope, e.Index, e.Counterpart, e.Err)
}

func (e SummaryDecodeError) Unwrap() error { return e.Err }

// Summary is the server's per-counterpart view of one thread. Text holds every
// counterpart message joined by a delimiter; only the first and last instants
// are reported. A negative MessageCount means the server's count was unreadable.
type Summary struct {
	Counterpart  string  `json:"counterpart"`
	SubjectRef   string  `json:"subjectRef,omitempty"`
	SubjectLabel string  `json:"subjectLabel,omitempty"`
	Text         *string `json:"messages"`
	FirstAt      string  `json:"firstAt"`
	LastAt       string  `json:"lastAt"`
	MessageCount int     `json:"messageCount"`
}

// ReplyRecord is one reply as returned by the replies endpoint.
type ReplyRecord struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Sender    string `json:"sender,omitempty"`
}
