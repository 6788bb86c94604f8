package domain

import "fmt"

var (
	ErrInvalidRoomName    = fmt.Errorf("invalid room name")
	ErrInvalidRoomMessage = fmt.Errorf("invalid room message")
	ErrInvalidHash        = fmt.Errorf("invalid hash length")
	ErrInvalidPublicKey   = fmt.Errorf("invalid public key length")
	ErrUnknownRole        = fmt.Errorf("unknown role")
)
