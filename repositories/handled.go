package repositories

import (
	"fmt"
	"ledger-chat/domain"
)

// IsHandled reports whether the transaction was already projected into the space.
func (s *Store) IsHandled(spaceID int64, blockHash, transactionHash domain.Hash) (bool, error) {
	var one int
	found, err := s.queryRow(`SELECT 1 FROM handled_transactions
WHERE space_id = ? AND block_hash = ? AND transaction_hash = ? LIMIT 1`,
		[]any{spaceID, blockHash.Bytes(), transactionHash.Bytes()}, &one)
	if err != nil {
		return false, fmt.Errorf("is handled: %w", err)
	}
	return found, nil
}

// MarkHandled records the transaction as projected. Marking twice is harmless.
func (s *Store) MarkHandled(spaceID int64, blockHash, transactionHash domain.Hash) error {
	_, err := s.exec(`INSERT OR IGNORE INTO handled_transactions (space_id, block_hash, transaction_hash)
VALUES (?, ?, ?)`, spaceID, blockHash.Bytes(), transactionHash.Bytes())
	if err != nil {
		return fmt.Errorf("mark handled: %w", err)
	}
	return nil
}

// HandledCount is the number of transactions projected into the space.
func (s *Store) HandledCount(spaceID int64) (int64, error) {
	var count int64
	_, err := s.queryRow("SELECT COUNT(1) FROM handled_transactions WHERE space_id = ?", []any{spaceID}, &count)
	return count, err
}
