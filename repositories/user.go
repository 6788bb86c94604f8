package repositories

import (
	"database/sql"
	"fmt"
	"ledger-chat/domain"
)

type UserInfo struct {
	SpaceID   int64
	PublicKey domain.PublicKey
	Nickname  *string
}

// User is a handle on a row of the users table.
type User struct {
	id    int64
	store *Store
}

func (s *Store) CreateUser(info UserInfo) (User, error) {
	id, err := s.insert("INSERT INTO users (space_id, public_key, nickname) VALUES (?, ?, ?)",
		info.SpaceID, info.PublicKey.Bytes(), nullString(info.Nickname))
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{id: id, store: s}, nil
}

func (s *Store) OpenUser(id int64) (User, bool, error) {
	found, err := s.exists("users", id)
	if err != nil || !found {
		return User{}, false, err
	}
	return User{id: id, store: s}, true, nil
}

func (s *Store) OpenUserUnchecked(id int64) User {
	return User{id: id, store: s}
}

func (s *Store) FindUser(spaceID int64, publicKey domain.PublicKey) (User, bool, error) {
	var id int64
	found, err := s.queryRow("SELECT id FROM users WHERE space_id = ? AND public_key = ?",
		[]any{spaceID, publicKey.Bytes()}, &id)
	if err != nil {
		return User{}, false, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return User{}, false, nil
	}
	return User{id: id, store: s}, true, nil
}

func (u User) ID() int64 { return u.id }

func (u User) SpaceID() (int64, error) {
	return field[int64](u.store, "users", "space_id", u.id)
}

func (u User) PublicKey() (domain.PublicKey, error) {
	raw, err := field[[]byte](u.store, "users", "public_key", u.id)
	if err != nil {
		return domain.PublicKey{}, err
	}
	return domain.PublicKeyFromBytes(raw)
}

// Nickname is nil until the user picks one.
func (u User) Nickname() (*string, error) {
	nickname, err := field[sql.NullString](u.store, "users", "nickname", u.id)
	if err != nil || !nickname.Valid {
		return nil, err
	}
	return &nickname.String, nil
}

// UpdateNickname sets or clears (nil) the nickname. Nicknames are unique.
func (u User) UpdateNickname(nickname *string) error {
	if _, err := u.store.exec("UPDATE users SET nickname = ? WHERE id = ?", nullString(nickname), u.id); err != nil {
		return fmt.Errorf("update nickname: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
