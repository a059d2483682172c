package stationboot

import (
	"fmt"
)

// MountError indicates that the removable storage could not be mounted or
// failed its self-test.
type MountError struct {
	Err error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount failed: %v", e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// FileNotFoundError indicates that a named file is absent from the volume.
type FileNotFoundError struct {
	Name string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Name)
}

// ReadError indicates that reading the staged image failed for a row.
type ReadError struct {
	Row int
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read of row %d failed: %v", e.Row, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// EraseError indicates that the NVM controller rejected a row erase.
type EraseError struct {
	Address uint32
	Err     error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erase of row at %X failed: %v", e.Address, e.Err)
}

func (e *EraseError) Unwrap() error { return e.Err }

// WriteError indicates that the NVM controller rejected a page write.
type WriteError struct {
	Address uint32
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write of page at %X failed: %v", e.Address, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ChecksumMismatchError reports that the CRC of the source row differs from
// the CRC of the row read back from flash.
type ChecksumMismatchError struct {
	Row  int
	Pair ChecksumPair
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for row %d: source %08X, flash %08X",
		e.Row, e.Pair.Source, e.Pair.Dest)
}

// RestartError is returned by Dispatcher.Run when the platform was asked to
// restart the system and returned control, which only happens off-target.
type RestartError struct {
	Cause error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("system restart requested: %v", e.Cause)
}

func (e *RestartError) Unwrap() error { return e.Cause }
