package repositories

import (
	"fmt"
	"ledger-chat/domain"
	"time"
)

type PublicMessageInfo struct {
	RoomID          int64
	UserID          int64
	BlockHash       domain.Hash
	TransactionHash domain.Hash
	Timestamp       time.Time
	Content         string
}

// PublicMessage is a handle on a row of the public_messages table.
type PublicMessage struct {
	id    int64
	store *Store
}

func (s *Store) CreatePublicMessage(info PublicMessageInfo) (PublicMessage, error) {
	id, err := s.insert(`INSERT INTO public_messages (room_id, user_id, block_hash, transaction_hash, timestamp, content)
VALUES (?, ?, ?, ?, ?, ?)`,
		info.RoomID, info.UserID, info.BlockHash.Bytes(), info.TransactionHash.Bytes(),
		info.Timestamp.UTC().UnixMilli(), info.Content)
	if err != nil {
		return PublicMessage{}, fmt.Errorf("create public message: %w", err)
	}
	return PublicMessage{id: id, store: s}, nil
}

func (s *Store) OpenPublicMessage(id int64) (PublicMessage, bool, error) {
	found, err := s.exists("public_messages", id)
	if err != nil || !found {
		return PublicMessage{}, false, err
	}
	return PublicMessage{id: id, store: s}, true, nil
}

func (s *Store) OpenPublicMessageUnchecked(id int64) PublicMessage {
	return PublicMessage{id: id, store: s}
}

// FindPublicMessage looks a message up by the ledger coordinate that created it.
func (s *Store) FindPublicMessage(roomID int64, blockHash, transactionHash domain.Hash) (PublicMessage, bool, error) {
	var id int64
	found, err := s.queryRow(
		"SELECT id FROM public_messages WHERE room_id = ? AND block_hash = ? AND transaction_hash = ?",
		[]any{roomID, blockHash.Bytes(), transactionHash.Bytes()}, &id)
	if err != nil {
		return PublicMessage{}, false, fmt.Errorf("find public message: %w", err)
	}
	if !found {
		return PublicMessage{}, false, nil
	}
	return PublicMessage{id: id, store: s}, true, nil
}

// PublicMessages iterates over the messages of a room by ascending id.
func (s *Store) PublicMessages(roomID int64) *Cursor[PublicMessage] {
	return newCursor(s,
		"SELECT id FROM public_messages WHERE room_id = ? AND id > ? ORDER BY id ASC LIMIT 1",
		[]any{roomID}, s.OpenPublicMessageUnchecked)
}

func (m PublicMessage) ID() int64 { return m.id }

func (m PublicMessage) RoomID() (int64, error) {
	return field[int64](m.store, "public_messages", "room_id", m.id)
}

func (m PublicMessage) UserID() (int64, error) {
	return field[int64](m.store, "public_messages", "user_id", m.id)
}

func (m PublicMessage) BlockHash() (domain.Hash, error) {
	return hashField(m.store, "public_messages", "block_hash", m.id)
}

func (m PublicMessage) TransactionHash() (domain.Hash, error) {
	return hashField(m.store, "public_messages", "transaction_hash", m.id)
}

func (m PublicMessage) Timestamp() (time.Time, error) {
	millis, err := field[int64](m.store, "public_messages", "timestamp", m.id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

func (m PublicMessage) Content() (string, error) {
	return field[string](m.store, "public_messages", "content", m.id)
}
