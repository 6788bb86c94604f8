package codec

import (
	"fmt"
	"ledger-chat/errors"
)

// ErrorKind classifies decoding failures.
type ErrorKind uint8

const (
	// KindIo means the input ended before the event was complete.
	KindIo ErrorKind = iota
	KindZstd
	KindInvalidName
	KindInvalidRoomName
	KindInvalidContent
	KindUnknownEventID
)

func (k ErrorKind) String() string {
	switch k {
	case KindIo:
		return "io"
	case KindZstd:
		return "zstd"
	case KindInvalidName:
		return "invalid name"
	case KindInvalidRoomName:
		return "invalid room name"
	case KindInvalidContent:
		return "invalid content"
	case KindUnknownEventID:
		return "unknown event id"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DecodeError is returned by every failed decoding.
// Raw carries the decompressed text that failed validation, ID the unknown
// discriminant.
type DecodeError struct {
	Kind ErrorKind
	Raw  string
	ID   uint8
	Err  error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindUnknownEventID:
		return fmt.Sprintf("decode: unknown event id %d", e.ID)
	case KindInvalidName, KindInvalidRoomName, KindInvalidContent:
		return fmt.Sprintf("decode: %s %q", e.Kind, e.Raw)
	default:
		if e.Err != nil {
			return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("decode: %s", e.Kind)
	}
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{errors.ErrDecode}
	}
	return []error{errors.ErrDecode, e.Err}
}
