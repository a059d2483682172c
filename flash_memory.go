package stationboot

import (
	"github.com/pkg/errors"
)

// MemoryFlash is a FlashController backed by a byte slice. It enforces the
// NVM's programming rules (row-aligned erases, page-aligned writes into
// erased rows) and can be told to fail specific operations.
type MemoryFlash struct {
	base   uint32
	layout Layout
	mem    []byte

	// FailErase and FailWrite make the operation at the given absolute
	// address fail with the associated error.
	FailErase map[uint32]error
	FailWrite map[uint32]error

	Erases       int
	Writes       int
	ErrataEvents []ErrataPhase
}

// NewMemoryFlash creates a simulated NVM covering size bytes starting at base.
// The contents start out erased.
func NewMemoryFlash(base uint32, size int, layout Layout) *MemoryFlash {
	f := &MemoryFlash{
		base:      base,
		layout:    layout,
		mem:       make([]byte, size),
		FailErase: map[uint32]error{},
		FailWrite: map[uint32]error{},
	}
	for i := range f.mem {
		f.mem[i] = ErasedByte
	}
	return f
}

func (f *MemoryFlash) span(address uint32, length int) (int, error) {
	if address < f.base || int(address-f.base)+length > len(f.mem) {
		return 0, errors.Errorf("address range %X+%d outside flash", address, length)
	}
	return int(address - f.base), nil
}

// EraseRow sets every byte of the row at address to ErasedByte.
func (f *MemoryFlash) EraseRow(address uint32) error {
	if err := f.FailErase[address]; err != nil {
		return err
	}
	if address%uint32(f.layout.RowSize) != 0 {
		return errors.Errorf("erase address %X is not row aligned", address)
	}
	off, err := f.span(address, f.layout.RowSize)
	if err != nil {
		return err
	}
	for i := off; i < off+f.layout.RowSize; i++ {
		f.mem[i] = ErasedByte
	}
	f.Erases++
	return nil
}

// WritePage programs one page. Like real NVM, programming can only clear bits,
// so writing into a row that was not erased corrupts rather than replaces.
func (f *MemoryFlash) WritePage(address uint32, data []byte) error {
	if err := f.FailWrite[address]; err != nil {
		return err
	}
	if address%uint32(f.layout.PageSize) != 0 {
		return errors.Errorf("write address %X is not page aligned", address)
	}
	if len(data) != f.layout.PageSize {
		return errors.Errorf("page write of %d bytes, page size is %d", len(data), f.layout.PageSize)
	}
	off, err := f.span(address, len(data))
	if err != nil {
		return err
	}
	for i, b := range data {
		f.mem[off+i] &= b
	}
	f.Writes++
	return nil
}

// ReadFlash returns a copy of length bytes starting at address.
func (f *MemoryFlash) ReadFlash(address uint32, length int) ([]byte, error) {
	off, err := f.span(address, length)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	copy(data, f.mem[off:off+length])
	return data, nil
}

// ApplyErrataWorkaround records the phase; there is no cache to toggle.
func (f *MemoryFlash) ApplyErrataWorkaround(phase ErrataPhase) {
	f.ErrataEvents = append(f.ErrataEvents, phase)
}

// Bytes returns the simulated flash contents.
func (f *MemoryFlash) Bytes() []byte {
	return f.mem
}
