// Package event holds the chat events carried by ledger transactions and the
// notifications emitted while projecting them.
package event

import (
	"fmt"
	"ledger-chat/domain"
)

// Kind is the discriminant written as the first byte of an encoded event.
type Kind uint8

const (
	KindCreatePublicRoom  Kind = 0
	KindPublicRoomMessage Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCreatePublicRoom:
		return "create_public_room"
	case KindPublicRoomMessage:
		return "public_room_message"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Visitor must be implemented by every consumer of events.
// A new event kind adds a method here, so each consumer fails to compile
// until it handles it.
type Visitor interface {
	VisitCreatePublicRoom(e CreatePublicRoom) error
	VisitPublicRoomMessage(e PublicRoomMessage) error
}

// Event is the closed set of chat events. Only this package implements it.
type Event interface {
	Kind() Kind
	Accept(v Visitor) error
	sealed()
}

type CreatePublicRoom struct {
	Name domain.RoomName
}

func NewCreatePublicRoom(name domain.RoomName) CreatePublicRoom {
	return CreatePublicRoom{Name: name}
}

func (e CreatePublicRoom) Kind() Kind             { return KindCreatePublicRoom }
func (e CreatePublicRoom) Accept(v Visitor) error { return v.VisitCreatePublicRoom(e) }
func (CreatePublicRoom) sealed()                  {}

type PublicRoomMessage struct {
	RoomName domain.RoomName
	Content  domain.RoomMessage
}

func NewPublicRoomMessage(roomName domain.RoomName, content domain.RoomMessage) PublicRoomMessage {
	return PublicRoomMessage{RoomName: roomName, Content: content}
}

func (e PublicRoomMessage) Kind() Kind             { return KindPublicRoomMessage }
func (e PublicRoomMessage) Accept(v Visitor) error { return v.VisitPublicRoomMessage(e) }
func (PublicRoomMessage) sealed()                  {}
