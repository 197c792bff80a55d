// Package inbox keeps a seller's customer conversations in sync with a
// poll-based backend.
//
// Two collections are tracked: product-scoped threads (a customer asking about
// one product) and store-scoped threads. A full-list refresh runs on a fixed
// interval and when asked; opening a thread fetches just its replies. Every
// fetched batch is merged with Reconcile, so repeated or out-of-order batches
// converge to the same state. Replies are sent optimistically and rolled back
// precisely if the backend rejects them.
//
// Usage:
//
//	client := inbox.NewClient("sk-...", inbox.WithBaseURL("https://seller.example.com"))
//	in := inbox.New(inbox.NewStore(), client, &inbox.Options{StoreRef: "store-42"})
//	in.Start(ctx)
//	defer in.Close()
//
//	_, err := in.Send(ctx, inbox.ScopeStore, convID, "Thanks for reaching out!")
package inbox

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval  = 120 * time.Second
	DefaultOpenRateLimit = rate.Limit(5)
	DefaultOpenBurst     = 5
)

// ============================================================================
// Event Emitter
// ============================================================================

// EventHandler handles inbox events.
type EventHandler func(event string, payload any)

type emitter struct {
	mu        sync.RWMutex
	listeners map[string][]EventHandler
}

func (e *emitter) On(event string, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], handler)
}

func (e *emitter) emit(event string, payload any) {
	e.mu.RLock()
	handlers := e.listeners[event]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() { recover() }() // swallow panics in user callbacks
			h(event, payload)
		}()
	}
}

func (e *emitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[string][]EventHandler)
}

// ============================================================================
// Inbox
// ============================================================================

// Options configures an Inbox. The zero value is usable except for StoreRef,
// which full-list refreshes require.
type Options struct {
	StoreRef     string
	PollInterval time.Duration
	// Delimiter separates messages in summary text.
	Delimiter string
	// Location is used for server timestamps that carry no zone.
	Location *time.Location
	// OpenRateLimit throttles on-demand thread refreshes; throttled opens
	// return the local state without fetching.
	OpenRateLimit rate.Limit
	OpenBurst     int
	Logger        *slog.Logger
	Metrics       *Metrics
	// Now overrides the clock used to timestamp outgoing messages.
	Now func() time.Time
}

// Inbox coordinates polling, reconciliation, and optimistic sends over a Store.
type Inbox struct {
	emitter
	store   *Store
	backend Backend

	storeRef     string
	pollInterval time.Duration
	delimiter    string
	loc          *time.Location
	openLimiter  *rate.Limiter
	log          *slog.Logger
	metrics      *Metrics
	now          func() time.Time

	sending atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates an inbox over store, fetching from and replying through backend.
func New(store *Store, backend Backend, opts *Options) *Inbox {
	in := &Inbox{
		emitter: emitter{listeners: make(map[string][]EventHandler)},
		store:   store,
		backend: backend,
	}
	if opts == nil {
		opts = &Options{}
	}
	in.storeRef = opts.StoreRef
	in.pollInterval = opts.PollInterval
	in.delimiter = opts.Delimiter
	in.loc = opts.Location
	in.log = opts.Logger
	in.metrics = opts.Metrics
	in.now = opts.Now

	// Defaults
	if in.pollInterval <= 0 {
		in.pollInterval = DefaultPollInterval
	}
	if in.delimiter == "" {
		in.delimiter = DefaultDelimiter
	}
	if in.loc == nil {
		in.loc = time.UTC
	}
	if in.log == nil {
		in.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if in.now == nil {
		in.now = time.Now
	}
	limit, burst := opts.OpenRateLimit, opts.OpenBurst
	if limit == 0 {
		limit = DefaultOpenRateLimit
	}
	if burst <= 0 {
		burst = DefaultOpenBurst
	}
	in.openLimiter = rate.NewLimiter(limit, burst)
	return in
}

// Store returns the underlying conversation store.
func (in *Inbox) Store() *Store {
	return in.store
}

// Start runs a full-list refresh now and then every poll interval until ctx
// is done or Close is called. Calling Start more than once has no effect.
func (in *Inbox) Start(ctx context.Context) {
	in.mu.Lock()
	if in.started || in.closed {
		in.mu.Unlock()
		return
	}
	in.started = true
	ctx, in.cancel = context.WithCancel(ctx)
	in.wg.Add(1)
	in.mu.Unlock()

	go in.pollLoop(ctx)
}

// Close stops the poll loop, cancels any refresh it has in flight, and waits
// for it to exit. Listeners are dropped. Close is idempotent.
func (in *Inbox) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	cancel := in.cancel
	in.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	in.wg.Wait()
	in.removeAll()
}

// Sending reports whether a send is in flight; a UI disables its send control while true.
func (in *Inbox) Sending() bool {
	return in.sending.Load()
}

// Conversation returns a copy of one conversation.
func (in *Inbox) Conversation(scope Scope, id string) (Conversation, bool) {
	return in.store.Get(scope, id)
}

// Conversations returns scope's conversations, most recent first, limited to
// those whose last message falls within [start, end]. Nil bounds disable the filter.
func (in *Inbox) Conversations(scope Scope, start, end *time.Time) []Conversation {
	return FilterByDateRange(in.store.List(scope), start, end)
}
