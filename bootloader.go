// Package stationboot implements the firmware-update path of a sensor station's
// bootloader: staging an application image on removable storage, programming
// it into NVM row by row, and handing off to the application.
//
// The package contains three main components: FlashController, Transferrer and
// Dispatcher. FlashController provides a hardware-agnostic way of erasing,
// writing and reading NVM rows and pages. Transferrer copies a staged image
// into flash through a FlashController, checksumming each row. Dispatcher
// runs the boot sequence: mount storage, check the update flag, transfer,
// clean up and jump to the application.
//
// Also included are command line tools, found in the cmd directory. The
// stationboot tool drives the boot sequence against a simulated or serial
// attached NVM, and the station tool runs the sensing application that
// requests updates.
package stationboot

import (
	"fmt"
)

// Default flash geometry of the SAM D21 NVM controller.
const (
	DefaultAppBase  = 0x12000
	DefaultRowSize  = 256
	DefaultPageSize = 64
)

// Offsets of the Cortex-M vector table words within the application image.
const (
	stackPointerOffset = 0x00
	resetVectorOffset  = 0x04
)

// ErasedByte is the value of every NVM byte after a row erase.
const ErasedByte = 0xFF

// Layout describes where the application lives in flash and how the NVM is
// divided into erase rows and write pages.
type Layout struct {
	AppBase  uint32 `yaml:"app_base"`
	RowSize  int    `yaml:"row_size"`
	PageSize int    `yaml:"page_size"`
}

// DefaultLayout returns the layout of the station's SAM D21.
func DefaultLayout() Layout {
	return Layout{
		AppBase:  DefaultAppBase,
		RowSize:  DefaultRowSize,
		PageSize: DefaultPageSize,
	}
}

// PagesPerRow returns the number of write pages in an erase row.
func (l Layout) PagesPerRow() int {
	return l.RowSize / l.PageSize
}

// RowAddress returns the absolute flash address of the given application row.
func (l Layout) RowAddress(row int) uint32 {
	return l.AppBase + uint32(row*l.RowSize)
}

// ResetVectorAddress returns the address of the word holding the
// application's entry point.
func (l Layout) ResetVectorAddress() uint32 {
	return l.AppBase + resetVectorOffset
}

// Validate checks that the layout describes whole pages within whole rows
// and a row-aligned application base.
func (l Layout) Validate() error {
	if l.RowSize <= 0 || l.PageSize <= 0 {
		return fmt.Errorf("row size %d and page size %d must be positive", l.RowSize, l.PageSize)
	}
	if l.RowSize%l.PageSize != 0 {
		return fmt.Errorf("row size %d is not a multiple of page size %d", l.RowSize, l.PageSize)
	}
	if l.AppBase%uint32(l.RowSize) != 0 {
		return fmt.Errorf("application base %X is not row aligned", l.AppBase)
	}
	return nil
}

// ErrataPhase identifies the point in the per-row checksum sequence at which
// a silicon erratum workaround must be applied.
type ErrataPhase int

const (
	// BeforeRAMChecksum precedes a CRC over a buffer in RAM. On the SAM D21
	// (errata 1.8.3) this disables the NVM data cache.
	BeforeRAMChecksum ErrataPhase = iota
	// AfterRAMChecksum follows a CRC over a buffer in RAM and precedes the
	// CRC over flash. On the SAM D21 this re-enables the cache.
	AfterRAMChecksum
)

func (p ErrataPhase) String() string {
	switch p {
	case BeforeRAMChecksum:
		return "before RAM checksum"
	case AfterRAMChecksum:
		return "after RAM checksum"
	default:
		return "unknown errata phase"
	}
}

// The FlashController interface allows low-level interaction with the NVM in a
// hardware-agnostic fashion. For whole-image programming, use Transferrer.
//
// EraseRow must leave every byte of the row at ErasedByte. WritePage writes
// exactly one page at a page-aligned address inside a previously erased row.
type FlashController interface {
	EraseRow(address uint32) error
	WritePage(address uint32, data []byte) error
	ReadFlash(address uint32, length int) ([]byte, error)
	ApplyErrataWorkaround(phase ErrataPhase)
}
