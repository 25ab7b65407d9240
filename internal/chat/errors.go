package chat

type ErrorKind int

const (
	KindInvalid ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
)

// Error is a failure the caller caused. Its message is safe to show to the
// client; storage failures are never wrapped in it.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	ErrMissingUsername       = &Error{KindInvalid, "username is required"}
	ErrMissingRoomID         = &Error{KindInvalid, "roomId is required"}
	ErrEmptyMessage          = &Error{KindInvalid, "message must contain text, image, audio, video, file, contact or location"}
	ErrInvalidLocation       = &Error{KindInvalid, "location coordinates are out of range"}
	ErrSelfRoomNotAllowed    = &Error{KindInvalid, "you cannot create a room with yourself"}
	ErrSelfContactNotAllowed = &Error{KindInvalid, "you cannot add yourself"}
	ErrRecipientNotFound     = &Error{KindNotFound, "recipient not found"}
	ErrRoomNotFound          = &Error{KindNotFound, "chat room not found"}
	ErrContactNotFound       = &Error{KindNotFound, "contact not found"}
	ErrContactAlreadyExists  = &Error{KindConflict, "contact already exists"}
	ErrNotParticipant        = &Error{KindForbidden, "you are not a participant of this room"}
)
