package stationboot

import (
	"io"
	"time"
)

// TransferOptions holds image transfer options.
type TransferOptions struct {
	// If true, a row whose flash checksum differs from the source checksum
	// aborts the transfer. Otherwise the mismatch is only logged.
	StrictChecksum bool `yaml:"strict_checksum"`
}

// Progress describes how far an image transfer has come.
type Progress struct {
	Row          int
	TotalRows    int
	BytesWritten int64
	TotalBytes   int64
	Elapsed      time.Duration
}

// ProgressCallback is called after every programmed row.
type ProgressCallback func(Progress)

// TransferResult summarises a transfer. Rows and Checksums cover the rows
// that were fully programmed before any abort.
type TransferResult struct {
	Rows       int
	Bytes      int64
	Checksums  []ChecksumPair
	Mismatches int
}

// Transferrer copies a staged image into the application region of flash.
type Transferrer struct {
	flash    FlashController
	layout   Layout
	options  TransferOptions
	progress ProgressCallback
}

// NewTransferrer creates a transferrer programming through flash.
func NewTransferrer(flash FlashController, layout Layout, options TransferOptions) *Transferrer {
	return &Transferrer{
		flash:   flash,
		layout:  layout,
		options: options,
	}
}

// SetProgressCallback installs a callback invoked after each row.
func (t *Transferrer) SetProgressCallback(cb ProgressCallback) {
	t.progress = cb
}

// RowCount returns the number of full rows and the number of bytes left over
// for a final partial row in an image of size bytes.
func (t *Transferrer) RowCount(size int64) (fullRows int, remainder int) {
	rowSize := int64(t.layout.RowSize)
	return int(size / rowSize), int(size % rowSize)
}

// TransferImage programs image into flash starting at the application base,
// one row at a time. The final partial row, if any, is requested as a whole
// row; the read returns what is left of the image. There is no rollback: an
// error leaves the rows before it programmed.
func (t *Transferrer) TransferImage(image ImageFile) (TransferResult, error) {
	var result TransferResult
	start := time.Now()

	total := image.Size()
	fullRows, remainder := t.RowCount(total)
	rows := fullRows
	if remainder > 0 {
		rows++
	}
	pkgLog.Infof("image is %d bytes: %d full rows, %d bytes in last row", total, fullRows, remainder)

	for row := 0; row < rows; row++ {
		pair, n, err := t.updateRow(image, row, t.layout.RowSize)
		if err != nil {
			return result, err
		}
		result.Rows++
		result.Bytes += int64(n)
		result.Checksums = append(result.Checksums, pair)
		if !pair.Match() {
			result.Mismatches++
		}

		if t.progress != nil {
			t.progress(Progress{
				Row:          row + 1,
				TotalRows:    rows,
				BytesWritten: result.Bytes,
				TotalBytes:   total,
				Elapsed:      time.Since(start),
			})
		}
	}

	pkgLog.Infof("programmed %d rows (%d bytes) in %v", result.Rows, result.Bytes, time.Since(start))
	return result, nil
}

// UpdateRow erases row, fills it with up to bytesToRead bytes from src and
// returns the row's checksum pair.
func (t *Transferrer) UpdateRow(src io.Reader, row, bytesToRead int) (ChecksumPair, error) {
	pair, _, err := t.updateRow(src, row, bytesToRead)
	return pair, err
}

func (t *Transferrer) updateRow(src io.Reader, row, bytesToRead int) (ChecksumPair, int, error) {
	address := t.layout.RowAddress(row)

	if err := t.flash.EraseRow(address); err != nil {
		pkgLog.Errorf("erase error at row %d (%X): %v", row, address, err)
		return ChecksumPair{}, 0, &EraseError{Address: address, Err: err}
	}
	t.checkErased(row, address)

	if bytesToRead > t.layout.RowSize {
		bytesToRead = t.layout.RowSize
	}
	buf := make([]byte, t.layout.RowSize)
	for i := range buf {
		buf[i] = ErasedByte
	}
	n, err := io.ReadFull(src, buf[:bytesToRead])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		pkgLog.Errorf("couldn't read row %d from image: %v", row, err)
		return ChecksumPair{}, n, &ReadError{Row: row, Err: err}
	}

	pagesPerRow := t.layout.PagesPerRow()
	for i := 0; i < pagesPerRow; i++ {
		pageAddr := address + uint32(i*t.layout.PageSize)
		page := buf[i*t.layout.PageSize : (i+1)*t.layout.PageSize]
		if err := t.flash.WritePage(pageAddr, page); err != nil {
			pkgLog.Errorf("couldn't write page at %X: %v", pageAddr, err)
			return ChecksumPair{}, n, &WriteError{Address: pageAddr, Err: err}
		}
	}

	pair, err := rowChecksums(t.flash, address, buf)
	if err != nil {
		pkgLog.Errorf("could not calculate CRC for row %d: %v", row, err)
		return pair, n, nil
	}
	pkgLog.Debugf("row %d: CRC source %08X CRC nvm %08X", row, pair.Source, pair.Dest)
	if !pair.Match() {
		mismatch := &ChecksumMismatchError{Row: row, Pair: pair}
		if t.options.StrictChecksum {
			pkgLog.Errorf("%v", mismatch)
			return pair, n, mismatch
		}
		pkgLog.Warnf("%v", mismatch)
	}
	return pair, n, nil
}

// checkErased scans a freshly erased row. A byte that is not ErasedByte is
// reported but does not stop the update.
func (t *Transferrer) checkErased(row int, address uint32) {
	data, err := t.flash.ReadFlash(address, t.layout.RowSize)
	if err != nil {
		pkgLog.Warnf("could not read back row %d after erase: %v", row, err)
		return
	}
	for i, b := range data {
		if b != ErasedByte {
			pkgLog.Warnf("row %d is not erased: byte at %X is %02X", row, address+uint32(i), b)
			return
		}
	}
}
