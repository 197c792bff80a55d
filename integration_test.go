//go:build integration

package inbox_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopdesk/inbox"
)

// helpers ---------------------------------------------------------------

func requireEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Fatalf("%s environment variable is required", key)
	}
	return v
}

func newClient(t *testing.T) *inbox.Client {
	t.Helper()
	key := requireEnv(t, "INBOX_API_KEY_TEST")
	if base := os.Getenv("INBOX_BASE_URL_TEST"); base != "" {
		return inbox.NewClient(key, inbox.WithBaseURL(base))
	}
	return inbox.NewClient(key)
}

// =======================================================================
// Live backend
// =======================================================================

func TestIntegration_RefreshAndOpen(t *testing.T) {
	storeRef := requireEnv(t, "INBOX_STORE_REF_TEST")
	in := inbox.New(inbox.NewStore(), newClient(t), &inbox.Options{StoreRef: storeRef})
	defer in.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := in.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	first := in.Store().Snapshot()
	t.Logf("product=%d store=%d", in.Store().Len(inbox.ScopeProduct), in.Store().Len(inbox.ScopeStore))

	if err := in.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got := len(in.Store().Snapshot()); got < len(first) {
		t.Fatalf("conversations dropped between refreshes: %d -> %d", len(first), got)
	}

	for _, scope := range inbox.Scopes {
		list := in.Conversations(scope, nil, nil)
		if len(list) == 0 {
			continue
		}
		c, err := in.Open(ctx, scope, list[0].ID)
		if err != nil {
			t.Fatalf("Open %s/%s: %v", scope, list[0].ID, err)
		}
		for i := 1; i < len(c.Messages); i++ {
			if c.Messages[i].Timestamp.Before(c.Messages[i-1].Timestamp) {
				t.Fatalf("%s thread out of order at %d", scope, i)
			}
		}
	}
}
