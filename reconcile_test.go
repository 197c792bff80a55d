package inbox

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReconcile(t *testing.T) {
	t.Run("skips messages already present", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)))
		got := Reconcile(c, []Message{msg("Hi", at(9, 0, 0)), msg("How much?", at(9, 5, 0))})

		want := []Message{msg("Hi", at(9, 0, 0)), msg("How much?", at(9, 5, 0))}
		if diff := cmp.Diff(want, got.Messages); diff != "" {
			t.Fatalf("messages mismatch (-want +got):\n%s", diff)
		}
		if got.LastMessage != "How much?" || !got.LastTimestamp.Equal(at(9, 5, 0)) {
			t.Fatalf("tail = %q@%v, want How much?@%v", got.LastMessage, got.LastTimestamp, at(9, 5, 0))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)))
		b := []Message{msg("A", at(10, 0, 0)), msg("B", at(8, 0, 0))}
		once := Reconcile(c, b)
		twice := Reconcile(once, b)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("second pass changed state (-once +twice):\n%s", diff)
		}
	})

	t.Run("order invariant", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)))
		b1 := []Message{msg("A", at(11, 0, 0)), msg("shared", at(10, 0, 0))}
		b2 := []Message{msg("B", at(10, 30, 0)), msg("shared", at(10, 0, 0))}
		left := Reconcile(Reconcile(c, b1), b2)
		right := Reconcile(Reconcile(c, b2), b1)
		if diff := cmp.Diff(left, right); diff != "" {
			t.Fatalf("application order matters (-b1b2 +b2b1):\n%s", diff)
		}
	})

	t.Run("out of order refreshes converge", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com")
		got := Reconcile(Reconcile(c, []Message{msg("A", at(12, 0, 0))}), []Message{msg("B", at(11, 0, 0))})
		want := []Message{msg("B", at(11, 0, 0)), msg("A", at(12, 0, 0))}
		if diff := cmp.Diff(want, got.Messages); diff != "" {
			t.Fatalf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("batch of known messages changes nothing", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)), selfMsg("Hello!", at(9, 1, 0)))
		got := Reconcile(c, []Message{msg("Hello!", at(9, 1, 0)), msg("Hi", at(9, 0, 0))})
		if diff := cmp.Diff(c.Messages, got.Messages); diff != "" {
			t.Fatalf("messages changed (-before +after):\n%s", diff)
		}
	})

	t.Run("nil batch", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)))
		got := Reconcile(c, nil)
		if diff := cmp.Diff(c, got); diff != "" {
			t.Fatalf("nil batch changed state:\n%s", diff)
		}
	})

	t.Run("ties keep arrival order", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("first", at(9, 0, 0)))
		got := Reconcile(c, []Message{msg("second", at(9, 0, 0)), msg("earlier", at(8, 0, 0))})
		var texts []string
		for _, m := range got.Messages {
			texts = append(texts, m.Text)
		}
		if diff := cmp.Diff([]string{"earlier", "first", "second"}, texts); diff != "" {
			t.Fatalf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("does not modify input", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("B", at(10, 0, 0)))
		before := c.clone()
		_ = Reconcile(c, []Message{msg("A", at(9, 0, 0))})
		if diff := cmp.Diff(before, c); diff != "" {
			t.Fatalf("input mutated:\n%s", diff)
		}
	})

	t.Run("drops empty text and truncates sub-second times", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)))
		got := Reconcile(c, []Message{
			{Sender: SenderCounterpart, Text: "", Timestamp: at(9, 1, 0)},
			{Sender: SenderCounterpart, Text: "Hi", Timestamp: at(9, 0, 0).Add(400 * time.Millisecond)},
		})
		if len(got.Messages) != 1 {
			t.Fatalf("got %d messages, want 1: %+v", len(got.Messages), got.Messages)
		}
	})

	t.Run("result is sorted", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com")
		batch := []Message{
			msg("e", at(14, 0, 0)), msg("a", at(1, 0, 0)), msg("c", at(9, 0, 0)),
			msg("b", at(3, 0, 0)), msg("d", at(9, 30, 0)),
		}
		got := Reconcile(c, batch)
		for i := 1; i < len(got.Messages); i++ {
			if got.Messages[i].Timestamp.Before(got.Messages[i-1].Timestamp) {
				t.Fatalf("messages not sorted at %d: %+v", i, got.Messages)
			}
		}
	})
}

func TestRemoveLocal(t *testing.T) {
	t.Run("removes only the exact message", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com",
			selfMsg("Thanks!", at(9, 0, 0)),
			msg("Hi", at(9, 1, 0)),
			selfMsg("Thanks!", at(9, 2, 0)),
		)
		got, removed := removeLocal(c, selfMsg("Thanks!", at(9, 2, 0)))
		if !removed {
			t.Fatal("expected removal")
		}
		want := []Message{selfMsg("Thanks!", at(9, 0, 0)), msg("Hi", at(9, 1, 0))}
		if diff := cmp.Diff(want, got.Messages); diff != "" {
			t.Fatalf("messages mismatch (-want +got):\n%s", diff)
		}
		if got.LastMessage != "Hi" {
			t.Fatalf("LastMessage = %q, want Hi", got.LastMessage)
		}
	})

	t.Run("never removes counterpart messages", func(t *testing.T) {
		c := makeTestStoreThread("ana@example.com", msg("Thanks!", at(9, 0, 0)))
		if _, removed := removeLocal(c, selfMsg("Thanks!", at(9, 0, 0))); removed {
			t.Fatal("counterpart message removed")
		}
	})

	t.Run("respects client id", func(t *testing.T) {
		local := selfMsg("Thanks!", at(9, 0, 0))
		local.ClientID = "client-1"
		c, _ := appendLocal(makeTestStoreThread("ana@example.com"), local)

		other := local
		other.ClientID = "client-2"
		if _, removed := removeLocal(c, other); removed {
			t.Fatal("removed a message with another client id")
		}
		if got, removed := removeLocal(c, local); !removed || len(got.Messages) != 0 {
			t.Fatalf("removed=%v messages=%+v", removed, got.Messages)
		}
	})
}

func TestAppendLocal(t *testing.T) {
	c := makeTestStoreThread("ana@example.com", msg("Hi", at(9, 0, 0)), msg("Later", at(11, 0, 0)))
	got, added := appendLocal(c, selfMsg("Reply", at(10, 0, 0)))
	if !added {
		t.Fatal("expected message to be added")
	}
	want := []Message{msg("Hi", at(9, 0, 0)), selfMsg("Reply", at(10, 0, 0)), msg("Later", at(11, 0, 0))}
	if diff := cmp.Diff(want, got.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	if _, added := appendLocal(got, selfMsg("Reply", at(10, 0, 0))); added {
		t.Fatal("duplicate optimistic message was added")
	}
}
