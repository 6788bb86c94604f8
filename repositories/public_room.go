package repositories

import (
	"fmt"
	"ledger-chat/domain"
)

type PublicRoomInfo struct {
	SpaceID         int64
	Name            string
	AuthorID        int64
	BlockHash       domain.Hash
	TransactionHash domain.Hash
}

// PublicRoom is a handle on a row of the public_rooms table.
type PublicRoom struct {
	id    int64
	store *Store
}

// CreatePublicRoom fails with errors.ErrAlreadyExists when the space already
// has a room with that name.
func (s *Store) CreatePublicRoom(info PublicRoomInfo) (PublicRoom, error) {
	id, err := s.insert(`INSERT INTO public_rooms (space_id, name, author_id, block_hash, transaction_hash)
VALUES (?, ?, ?, ?, ?)`,
		info.SpaceID, info.Name, info.AuthorID, info.BlockHash.Bytes(), info.TransactionHash.Bytes())
	if err != nil {
		return PublicRoom{}, fmt.Errorf("create public room: %w", err)
	}
	return PublicRoom{id: id, store: s}, nil
}

func (s *Store) OpenPublicRoom(id int64) (PublicRoom, bool, error) {
	found, err := s.exists("public_rooms", id)
	if err != nil || !found {
		return PublicRoom{}, false, err
	}
	return PublicRoom{id: id, store: s}, true, nil
}

func (s *Store) OpenPublicRoomUnchecked(id int64) PublicRoom {
	return PublicRoom{id: id, store: s}
}

func (s *Store) FindPublicRoom(spaceID int64, name string) (PublicRoom, bool, error) {
	var id int64
	found, err := s.queryRow("SELECT id FROM public_rooms WHERE space_id = ? AND name = ?",
		[]any{spaceID, name}, &id)
	if err != nil {
		return PublicRoom{}, false, fmt.Errorf("find public room: %w", err)
	}
	if !found {
		return PublicRoom{}, false, nil
	}
	return PublicRoom{id: id, store: s}, true, nil
}

// PublicRooms iterates over the rooms of a space by ascending id.
func (s *Store) PublicRooms(spaceID int64) *Cursor[PublicRoom] {
	return newCursor(s,
		"SELECT id FROM public_rooms WHERE space_id = ? AND id > ? ORDER BY id ASC LIMIT 1",
		[]any{spaceID}, s.OpenPublicRoomUnchecked)
}

func (r PublicRoom) ID() int64 { return r.id }

func (r PublicRoom) SpaceID() (int64, error) {
	return field[int64](r.store, "public_rooms", "space_id", r.id)
}

func (r PublicRoom) Name() (string, error) {
	return field[string](r.store, "public_rooms", "name", r.id)
}

func (r PublicRoom) AuthorID() (int64, error) {
	return field[int64](r.store, "public_rooms", "author_id", r.id)
}

func (r PublicRoom) BlockHash() (domain.Hash, error) {
	return hashField(r.store, "public_rooms", "block_hash", r.id)
}

func (r PublicRoom) TransactionHash() (domain.Hash, error) {
	return hashField(r.store, "public_rooms", "transaction_hash", r.id)
}

// UpdateName renames the room. Ledger events never rename a room.
func (r PublicRoom) UpdateName(name string) error {
	if _, err := r.store.exec("UPDATE public_rooms SET name = ? WHERE id = ?", name, r.id); err != nil {
		return fmt.Errorf("update room name: %w", err)
	}
	return nil
}

func hashField(s *Store, table, column string, id int64) (domain.Hash, error) {
	raw, err := field[[]byte](s, table, column, id)
	if err != nil {
		return domain.Hash{}, err
	}
	return domain.HashFromBytes(raw)
}
