package inbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SendError reports a rejected reply. Message is the rolled-back message, so a
// caller can put its text back in the input for a manual retry.
type SendError struct {
	Message Message
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send reply: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Send replies into an existing conversation. The message is appended to the
// thread before the backend is called, so readers see it immediately. If the
// backend rejects it, exactly that message is removed again and a *SendError
// is returned. Sends are never retried here.
//
// Only one send may be in flight at a time; a concurrent call fails with
// ErrSendInProgress.
func (in *Inbox) Send(ctx context.Context, scope Scope, id, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if !in.sending.CompareAndSwap(false, true) {
		return Message{}, ErrSendInProgress
	}
	defer in.sending.Store(false)

	conv, ok := in.store.Get(scope, id)
	if !ok {
		return Message{}, ErrConversationNotFound
	}

	msg := NewMessage(SenderSelf, text, in.now())
	msg.ClientID = uuid.NewString()
	_, added, err := in.store.AppendLocal(scope, id, msg)
	if err != nil {
		return Message{}, err
	}
	in.emit("message.local", map[string]any{"scope": scope, "id": id, "message": msg})

	if err := in.backend.SendReply(ctx, conv.ReplyForm(text)); err != nil {
		if added {
			if _, removed, rmErr := in.store.RemoveLocal(scope, id, msg); rmErr != nil || !removed {
				in.log.Warn("rollback found no optimistic message to remove",
					"scope", scope, "id", id, "clientId", msg.ClientID, "err", rmErr)
			}
		}
		in.metrics.observeSend("rolled_back")
		in.log.Warn("reply rejected, rolled back", "scope", scope, "id", id, "err", err)
		in.emit("message.failed", map[string]any{"scope": scope, "id": id, "clientId": msg.ClientID, "error": err.Error()})
		return msg, &SendError{Message: msg, Err: err}
	}

	in.metrics.observeSend("ok")
	in.emit("message.confirmed", map[string]any{"scope": scope, "id": id, "clientId": msg.ClientID})
	return msg, nil
}
