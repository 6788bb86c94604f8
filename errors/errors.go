package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
	ErrNoSpaceRegistered = fmt.Errorf("no space registered for projection")

	ErrDecode          = fmt.Errorf("event decoding failed")
	ErrPayloadTooLarge = fmt.Errorf("encoded field exceeds its length prefix")

	ErrAlreadyExists = fmt.Errorf("record already exists")
	ErrNotFound      = fmt.Errorf("record not found")
	ErrRoomConflict  = fmt.Errorf("room already created by another transaction")
	ErrUnknownSpace  = fmt.Errorf("space is not stored locally")

	ErrCorruptedBlock = fmt.Errorf("corrupted block")
	ErrEmptyLedger    = fmt.Errorf("ledger has no root block")
	ErrEventRejected  = fmt.Errorf("event rejected by validator")
)
