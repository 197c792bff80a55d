package inbox

import (
	"context"
	"errors"
	"time"
)

// ── Poll loop ─────────────────────────────────────────────

func (in *Inbox) pollLoop(ctx context.Context) {
	defer in.wg.Done()

	in.Refresh(ctx)

	ticker := time.NewTicker(in.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.Refresh(ctx)
		}
	}
}

// ── Full-list refresh ─────────────────────────────────────

// Refresh fetches both scopes' summaries and reconciles every conversation in
// the response. Conversations missing from the response are kept. On a fetch
// error the store is left untouched and the error is returned.
func (in *Inbox) Refresh(ctx context.Context) error {
	in.emit("sync.start", nil)

	list, err := in.backend.FetchConversationSummaries(ctx, in.storeRef)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		in.fetchFailed("full", err)
		return err
	}
	if list == nil {
		list = &SummaryList{}
	}

	for _, bad := range list.Malformed {
		in.log.Warn("malformed summary, treating as empty",
			"scope", bad.Scope, "index", bad.Index, "counterpart", bad.Counterpart, "err", bad.Err)
	}

	product := in.decodeSummaries(ScopeProduct, list.Product)
	store := in.decodeSummaries(ScopeStore, list.Store)
	pIns, pMerged := in.store.ApplyRefresh(ScopeProduct, product)
	sIns, sMerged := in.store.ApplyRefresh(ScopeStore, store)

	for _, scope := range Scopes {
		in.metrics.setConversations(scope, in.store.Len(scope))
	}
	in.metrics.observeRefresh("full", "ok")
	in.log.Debug("inbox refreshed",
		"product_new", pIns, "product_merged", pMerged,
		"store_new", sIns, "store_merged", sMerged)
	in.emit("sync.complete", map[string]any{
		"inserted": pIns + sIns,
		"merged":   pMerged + sMerged,
	})
	return nil
}

// SwitchScope is called when the user moves to scope's view. Both scopes come
// from one endpoint, so it runs a full-list refresh and returns scope's
// conversations within [start, end]. On a fetch error the last synchronized
// view is returned along with the error.
func (in *Inbox) SwitchScope(ctx context.Context, scope Scope, start, end *time.Time) ([]Conversation, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}
	err := in.Refresh(ctx)
	return in.Conversations(scope, start, end), err
}

// decodeSummaries converts one scope's summaries. A summary with a malformed
// message field contributes an empty batch; the others are unaffected.
func (in *Inbox) decodeSummaries(scope Scope, summaries []Summary) []ThreadUpdate {
	updates := make([]ThreadUpdate, 0, len(summaries))
	for _, s := range summaries {
		if s.Counterpart == "" || (scope == ScopeProduct && s.SubjectRef == "") {
			in.log.Warn("skipping summary without identity", "scope", scope, "counterpart", s.Counterpart)
			continue
		}
		msgs, err := s.Messages(in.delimiter, in.loc)
		if err != nil {
			in.log.Warn("malformed summary, treating as empty", "scope", scope, "counterpart", s.Counterpart, "err", err)
			msgs = nil
		}
		updates = append(updates, ThreadUpdate{
			Counterpart:  s.Counterpart,
			Subject:      s.subject(scope),
			MessageCount: s.MessageCount,
			Messages:     msgs,
		})
	}
	return updates
}

// ── On-demand thread refresh ──────────────────────────────

// Open refreshes a single conversation's replies, typically when the user
// selects it, and returns its state. Optimistic messages already in the
// thread are kept. When opens are throttled or the fetch fails the local state
// is returned; a fetch failure is also returned as the error.
func (in *Inbox) Open(ctx context.Context, scope Scope, id string) (Conversation, error) {
	conv, ok := in.store.Get(scope, id)
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	if !in.openLimiter.Allow() {
		in.log.Debug("thread refresh throttled", "scope", scope, "id", id)
		return conv, nil
	}

	records, err := in.backend.FetchReplies(ctx, conv.Key())
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		in.fetchFailed("thread", err)
		return conv, err
	}

	batch := make([]Message, 0, len(records))
	for _, r := range records {
		m, err := r.Message(in.loc)
		if err != nil || m.Text == "" {
			in.log.Warn("skipping malformed reply", "scope", scope, "id", id, "err", err)
			continue
		}
		batch = append(batch, m)
	}

	updated, err := in.store.Reconcile(scope, id, batch)
	if err != nil {
		return conv, err
	}
	in.metrics.observeRefresh("thread", "ok")
	in.emit("thread.refreshed", map[string]any{"scope": scope, "id": id, "messages": len(updated.Messages)})
	return updated, nil
}

func (in *Inbox) fetchFailed(kind string, err error) {
	if errors.Is(err, context.Canceled) {
		in.log.Debug("refresh cancelled", "kind", kind)
		return
	}
	in.metrics.observeRefresh(kind, "error")
	in.log.Warn("refresh failed, keeping last synchronized state", "kind", kind, "err", err)
	in.emit("sync.error", map[string]any{"kind": kind, "error": err.Error()})
}
