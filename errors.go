package inbox

import "errors"

var (
	// ErrInvalidTimestamp is returned when a server timestamp matches no known layout.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrEmptyMessage is returned by Send when the text is blank after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrSendInProgress is returned by Send while another send is in flight.
	ErrSendInProgress = errors.New("a send is already in progress")
	// ErrConversationNotFound is returned when no conversation has the given scope and id.
	ErrConversationNotFound = errors.New("conversation not found")
)
