package repositories

import (
	"fmt"
	"ledger-chat/domain"
)

type SpaceInfo struct {
	Title     string
	RootBlock domain.Hash
	Author    domain.PublicKey
}

// Space is a handle on a row of the spaces table.
type Space struct {
	id    int64
	store *Store
}

func (s *Store) CreateSpace(info SpaceInfo) (Space, error) {
	id, err := s.insert("INSERT INTO spaces (title, root_block, author) VALUES (?, ?, ?)",
		info.Title, info.RootBlock.Bytes(), info.Author.Bytes())
	if err != nil {
		return Space{}, fmt.Errorf("create space: %w", err)
	}
	return Space{id: id, store: s}, nil
}

// OpenSpace returns the space with id if it exists.
func (s *Store) OpenSpace(id int64) (Space, bool, error) {
	found, err := s.exists("spaces", id)
	if err != nil || !found {
		return Space{}, false, err
	}
	return Space{id: id, store: s}, true, nil
}

// OpenSpaceUnchecked trusts the caller that id exists.
func (s *Store) OpenSpaceUnchecked(id int64) Space {
	return Space{id: id, store: s}
}

func (s *Store) FindSpace(rootBlock domain.Hash) (Space, bool, error) {
	var id int64
	found, err := s.queryRow("SELECT id FROM spaces WHERE root_block = ?", []any{rootBlock.Bytes()}, &id)
	if err != nil {
		return Space{}, false, fmt.Errorf("find space: %w", err)
	}
	if !found {
		return Space{}, false, nil
	}
	return Space{id: id, store: s}, true, nil
}

// Spaces iterates over all spaces by ascending id.
func (s *Store) Spaces() *Cursor[Space] {
	return newCursor(s, "SELECT id FROM spaces WHERE id > ? ORDER BY id ASC LIMIT 1", nil, s.OpenSpaceUnchecked)
}

func (sp Space) ID() int64 { return sp.id }

func (sp Space) Title() (string, error) {
	return field[string](sp.store, "spaces", "title", sp.id)
}

func (sp Space) RootBlock() (domain.Hash, error) {
	raw, err := field[[]byte](sp.store, "spaces", "root_block", sp.id)
	if err != nil {
		return domain.Hash{}, err
	}
	return domain.HashFromBytes(raw)
}

func (sp Space) Author() (domain.PublicKey, error) {
	raw, err := field[[]byte](sp.store, "spaces", "author", sp.id)
	if err != nil {
		return domain.PublicKey{}, err
	}
	return domain.PublicKeyFromBytes(raw)
}

func (sp Space) UpdateTitle(title string) error {
	if _, err := sp.store.exec("UPDATE spaces SET title = ? WHERE id = ?", title, sp.id); err != nil {
		return fmt.Errorf("update space title: %w", err)
	}
	return nil
}

// Delete removes the space and, by cascade, everything projected into it.
func (sp Space) Delete() error {
	if _, err := sp.store.exec("DELETE FROM spaces WHERE id = ?", sp.id); err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	return nil
}

// AddShard records a peer address serving this space. Known addresses are ignored.
func (sp Space) AddShard(address string) error {
	if _, err := sp.store.exec("INSERT OR IGNORE INTO shards (space_id, address) VALUES (?, ?)", sp.id, address); err != nil {
		return fmt.Errorf("add shard: %w", err)
	}
	return nil
}

func (sp Space) Shards() ([]string, error) {
	sp.store.mu.Lock()
	defer sp.store.mu.Unlock()

	rows, err := sp.store.db.Query("SELECT address FROM shards WHERE space_id = ? ORDER BY id ASC", sp.id)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	defer rows.Close()

	var shards []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, err
		}
		shards = append(shards, address)
	}
	return shards, rows.Err()
}

// ShareLink builds the link other members use to join this space.
func (sp Space) ShareLink() (domain.ShareLink, error) {
	root, err := sp.RootBlock()
	if err != nil {
		return domain.ShareLink{}, err
	}
	author, err := sp.Author()
	if err != nil {
		return domain.ShareLink{}, err
	}
	shards, err := sp.Shards()
	if err != nil {
		return domain.ShareLink{}, err
	}
	return domain.ShareLink{RootBlock: root, PublicKey: author, Shards: shards}, nil
}
