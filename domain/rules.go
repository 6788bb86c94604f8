package domain

import "regexp"

const (
	DefaultRoomNameMaxLength    = 64
	DefaultRoomMessageMaxLength = 1024
)

const roomNamePattern = `^[a-zA-Z0-9]{1,64}$|^[a-zA-Z0-9]{1,64}[a-zA-Z0-9\-]{0,64}[a-zA-Z0-9]{1,64}$`

// Rules groups the validation settings of the value types.
// A Rules value is built once at startup and shared read-only.
type Rules struct {
	roomName             *regexp.Regexp
	roomNameMaxLength    int
	roomMessageMaxLength int
}

func DefaultRules() Rules {
	return NewRules(DefaultRoomNameMaxLength, DefaultRoomMessageMaxLength)
}

// NewRules compiles the room name pattern.
// Limits greater than the defaults are clamped to the defaults: the wire format
// cannot carry longer values.
func NewRules(roomNameMaxLength, roomMessageMaxLength int) Rules {
	if roomNameMaxLength <= 0 || roomNameMaxLength > DefaultRoomNameMaxLength {
		roomNameMaxLength = DefaultRoomNameMaxLength
	}
	if roomMessageMaxLength <= 0 || roomMessageMaxLength > DefaultRoomMessageMaxLength {
		roomMessageMaxLength = DefaultRoomMessageMaxLength
	}
	return Rules{
		roomName:             regexp.MustCompile(roomNamePattern),
		roomNameMaxLength:    roomNameMaxLength,
		roomMessageMaxLength: roomMessageMaxLength,
	}
}

func (r Rules) RoomNameMaxLength() int    { return r.roomNameMaxLength }
func (r Rules) RoomMessageMaxLength() int { return r.roomMessageMaxLength }
