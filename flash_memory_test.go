package stationboot

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlash(rows int) *MemoryFlash {
	layout := DefaultLayout()
	return NewMemoryFlash(layout.AppBase, rows*layout.RowSize, layout)
}

func TestMemoryFlashEraseLeavesRowErased(t *testing.T) {
	layout := DefaultLayout()
	f := newTestFlash(4)
	for i := range f.Bytes() {
		f.Bytes()[i] = byte(i)
	}

	for row := 0; row < 4; row++ {
		require.NoError(t, f.EraseRow(layout.RowAddress(row)))
		data, err := f.ReadFlash(layout.RowAddress(row), layout.RowSize)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{ErasedByte}, layout.RowSize), data, "row %d", row)
	}
	assert.Equal(t, 4, f.Erases)
}

func TestMemoryFlashRoundTrip(t *testing.T) {
	layout := DefaultLayout()
	f := newTestFlash(2)
	row := make([]byte, layout.RowSize)
	for i := range row {
		row[i] = byte(i * 7)
	}

	addr := layout.RowAddress(1)
	require.NoError(t, f.EraseRow(addr))
	for p := 0; p < layout.PagesPerRow(); p++ {
		page := row[p*layout.PageSize : (p+1)*layout.PageSize]
		require.NoError(t, f.WritePage(addr+uint32(p*layout.PageSize), page))
	}

	data, err := f.ReadFlash(addr, layout.RowSize)
	require.NoError(t, err)
	assert.Equal(t, row, data)
	assert.Equal(t, layout.PagesPerRow(), f.Writes)
}

func TestMemoryFlashRejectsBadAccess(t *testing.T) {
	layout := DefaultLayout()
	f := newTestFlash(1)

	assert.Error(t, f.EraseRow(layout.AppBase+1), "unaligned erase")
	assert.Error(t, f.EraseRow(layout.RowAddress(1)), "erase past end")
	assert.Error(t, f.WritePage(layout.AppBase+3, make([]byte, layout.PageSize)), "unaligned write")
	assert.Error(t, f.WritePage(layout.AppBase, make([]byte, 10)), "short page")
	_, err := f.ReadFlash(layout.AppBase-1, 4)
	assert.Error(t, err, "read before base")
}

func TestMemoryFlashWriteWithoutEraseOnlyClearsBits(t *testing.T) {
	layout := DefaultLayout()
	f := newTestFlash(1)

	require.NoError(t, f.WritePage(layout.AppBase, bytes.Repeat([]byte{0xF0}, layout.PageSize)))
	require.NoError(t, f.WritePage(layout.AppBase, bytes.Repeat([]byte{0x0F}, layout.PageSize)))

	data, err := f.ReadFlash(layout.AppBase, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), data[0])
}

func TestMemoryFlashInjectedFailures(t *testing.T) {
	layout := DefaultLayout()
	f := newTestFlash(1)
	boom := errors.New("nvm busy")
	f.FailErase[layout.AppBase] = boom
	f.FailWrite[layout.AppBase] = boom

	assert.Equal(t, boom, f.EraseRow(layout.AppBase))
	assert.Equal(t, boom, f.WritePage(layout.AppBase, make([]byte, layout.PageSize)))
	assert.Zero(t, f.Erases)
	assert.Zero(t, f.Writes)
}
