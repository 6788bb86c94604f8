package domain

import (
	"fmt"
	"strings"
)

// RoomName is the validated name of a public room.
// The zero value is not a valid name; use NewRoomName.
type RoomName struct {
	value string
}

// NewRoomName trims the input and checks it against the rules.
func NewRoomName(rules Rules, name string) (RoomName, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > rules.roomNameMaxLength {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoomName, name)
	}
	if !rules.roomName.MatchString(name) {
		return RoomName{}, fmt.Errorf("%w: %q", ErrInvalidRoomName, name)
	}
	return RoomName{value: name}, nil
}

func (n RoomName) String() string { return n.value }

func (n RoomName) IsZero() bool { return n.value == "" }
