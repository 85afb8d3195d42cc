package eeprom

import "errors"

// Flash operation errors. A Flash collaborator reports one of these
// (optionally wrapped with call-site context via fmt.Errorf's %w);
// the controller propagates them verbatim without converting between
// kinds. Every structural transition in the write/compaction state
// machine is arranged so that one of these errors leaves the Flash
// region recoverable by a subsequent Init.
var (
	// ErrUnlockFailed means the Flash program/erase controller failed
	// to unlock.
	ErrUnlockFailed = errors.New("eeprom: flash unlock failed")
	// ErrTimeout means a Flash operation did not complete before its
	// busy-wait timeout expired.
	ErrTimeout = errors.New("eeprom: flash operation timed out")
	// ErrProgrammingError means the target half-word was not 0xFFFF
	// before the program attempt.
	ErrProgrammingError = errors.New("eeprom: flash programming error")
	// ErrWriteProtected means the target address is write-protected.
	ErrWriteProtected = errors.New("eeprom: flash is write-protected")
	// ErrBusy means the Flash program/erase controller was already
	// busy with another operation.
	ErrBusy = errors.New("eeprom: flash busy")
)
