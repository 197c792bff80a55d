package inbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

var testDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

// at returns a second-resolution instant on testDay.
func at(h, m, s int) time.Time {
	return testDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func msg(text string, ts time.Time) Message {
	return NewMessage(SenderCounterpart, text, ts)
}

func selfMsg(text string, ts time.Time) Message {
	return NewMessage(SenderSelf, text, ts)
}

func strPtr(s string) *string { return &s }

func makeTestStoreThread(counterpart string, msgs ...Message) Conversation {
	return Reconcile(NewConversation(counterpart, StoreSubject{}), msgs)
}

func makeTestProductThread(counterpart, ref string, msgs ...Message) Conversation {
	return Reconcile(NewConversation(counterpart, ProductSubject{ProductRef: ref, ProductName: "Item " + ref}), msgs)
}

// fakeBackend is an in-memory Backend with scriptable failures.
type fakeBackend struct {
	mu         sync.Mutex
	summaries  *SummaryList
	summaryErr error
	replies    map[ConversationKey][]ReplyRecord
	repliesErr error
	sendErr    error
	sent       []ReplyForm
	fetches    int
	// sendGate, when set, blocks SendReply until it is closed.
	sendGate chan struct{}
	// sendEntered is signalled when SendReply starts.
	sendEntered chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		summaries: &SummaryList{},
		replies:   make(map[ConversationKey][]ReplyRecord),
	}
}

func (f *fakeBackend) FetchConversationSummaries(ctx context.Context, storeRef string) (*SummaryList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if storeRef == "" {
		return nil, errors.New("store reference is required")
	}
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	cp := *f.summaries
	return &cp, nil
}

func (f *fakeBackend) FetchReplies(ctx context.Context, key ConversationKey) ([]ReplyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repliesErr != nil {
		return nil, f.repliesErr
	}
	return append([]ReplyRecord(nil), f.replies[key]...), nil
}

func (f *fakeBackend) SendReply(ctx context.Context, form ReplyForm) error {
	f.mu.Lock()
	gate, entered := f.sendGate, f.sendEntered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, form)
	return nil
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) setSummaries(list *SummaryList, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries, f.summaryErr = list, err
}

// fixedClock returns a Now func that always reports t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
