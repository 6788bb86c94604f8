package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// RoomMessage is the validated content of a message posted to a room.
type RoomMessage struct {
	value string
}

// NewRoomMessage trims the input and rejects empty, oversized
// or control-character carrying content.
func NewRoomMessage(rules Rules, content string) (RoomMessage, error) {
	content = strings.TrimSpace(content)
	if len(content) == 0 || len(content) > rules.roomMessageMaxLength {
		return RoomMessage{}, fmt.Errorf("%w: length %d", ErrInvalidRoomMessage, len(content))
	}
	if !utf8.ValidString(content) {
		return RoomMessage{}, fmt.Errorf("%w: not utf-8", ErrInvalidRoomMessage)
	}
	for i := 0; i < len(content); i++ {
		if isASCIIControl(content[i]) {
			return RoomMessage{}, fmt.Errorf("%w: control character at %d", ErrInvalidRoomMessage, i)
		}
	}
	return RoomMessage{value: content}, nil
}

func (m RoomMessage) String() string { return m.value }

func isASCIIControl(b byte) bool {
	return b < 0x20 || b == 0x7f
}
