package stationboot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers framed commands from a MemoryFlash.
type fakeDevice struct {
	flash  *MemoryFlash
	out    bytes.Buffer
	resets int
	// packetSize is the reported packet size. Longer reads go unanswered.
	packetSize uint16
	// eraseRow is the reported number of pages per erase row.
	eraseRow byte
	// failCode, when set, is returned instead of ResultSuccess.
	failCode byte
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	return d.out.Read(p)
}

func (d *fakeDevice) Write(tx []byte) (int, error) {
	header, data := tx[:10], tx[10:]
	echo := append([]byte(nil), header...)
	echo[4], echo[5] = 0, 0
	d.out.Write(echo)

	length := binary.LittleEndian.Uint16(header[2:])
	address := binary.LittleEndian.Uint32(header[6:])
	status := func(err error) {
		switch {
		case d.failCode != 0:
			d.out.WriteByte(d.failCode)
		case err != nil:
			d.out.WriteByte(ResultAddressError)
		default:
			d.out.WriteByte(ResultSuccess)
		}
	}

	switch header[1] {
	case commandGetVersion:
		resp := make([]byte, respLengthGetVersion)
		resp[0], resp[1] = 2, 1
		binary.LittleEndian.PutUint16(resp[2:], d.packetSize)
		binary.LittleEndian.PutUint16(resp[6:], 0x1001)
		resp[10], resp[11] = d.eraseRow, 1
		d.out.Write(resp)
	case commandReadFlash:
		if d.packetSize != 0 && length > d.packetSize {
			break
		}
		resp, _ := d.flash.ReadFlash(address, int(length))
		d.out.Write(resp)
	case commandWriteFlash:
		status(d.flash.WritePage(address, data))
	case commandEraseFlash:
		var err error
		for i := 0; i < int(length) && err == nil; i++ {
			err = d.flash.EraseRow(address + uint32(i*d.flash.layout.RowSize))
		}
		status(err)
	case commandReset:
		d.resets++
	}
	return len(tx), nil
}

func newSerialFixture(t *testing.T) (*SerialFlash, *fakeDevice) {
	return newSerialFixtureWith(t, &fakeDevice{packetSize: 256, eraseRow: 4})
}

func newSerialFixtureWith(t *testing.T, dev *fakeDevice) (*SerialFlash, *fakeDevice) {
	dev.flash = newTestFlash(4)
	f := NewSerialFlashOn(dev)
	require.NoError(t, f.Connect())
	return f, dev
}

func TestSerialFlashConnect(t *testing.T) {
	f, _ := newSerialFixture(t)
	assert.Equal(t, VersionInfo{
		VersionMinor:  2,
		VersionMajor:  1,
		MaxPacketSize: 256,
		DeviceID:      0x1001,
		EraseRowSize:  4,
		WriteRowSize:  1,
	}, f.VersionInfo())
}

func TestSerialFlashTransfer(t *testing.T) {
	f, dev := newSerialFixture(t)
	tr := NewTransferrer(f, DefaultLayout(), TransferOptions{StrictChecksum: true})

	image := newImage(600)
	result, err := tr.TransferImage(bytesImage{bytes.NewReader(image)})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 3, dev.flash.Erases)
	assert.Equal(t, 12, dev.flash.Writes)
	assert.Equal(t, image, dev.flash.Bytes()[:600])
	assert.Zero(t, dev.out.Len())

	require.NoError(t, f.Reset())
	assert.Equal(t, 1, dev.resets)
}

func TestSerialFlashReadsWithinPacketSize(t *testing.T) {
	f, dev := newSerialFixtureWith(t, &fakeDevice{packetSize: 64, eraseRow: 4})
	require.NoError(t, f.CheckLayout(DefaultLayout()))

	tr := NewTransferrer(f, DefaultLayout(), TransferOptions{StrictChecksum: true})
	image := newImage(300)
	result, err := tr.TransferImage(bytesImage{bytes.NewReader(image)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, image, dev.flash.Bytes()[:300])

	data, err := f.ReadFlash(DefaultAppBase+10, 200)
	require.NoError(t, err)
	assert.Equal(t, image[10:210], data)
}

func TestSerialFlashCheckLayout(t *testing.T) {
	f, _ := newSerialFixtureWith(t, &fakeDevice{packetSize: 32, eraseRow: 4})
	assert.Error(t, f.CheckLayout(DefaultLayout()), "page larger than a packet")

	f, _ = newSerialFixtureWith(t, &fakeDevice{packetSize: 256, eraseRow: 8})
	assert.Error(t, f.CheckLayout(DefaultLayout()), "erase row geometry differs")

	f, _ = newSerialFixtureWith(t, &fakeDevice{})
	assert.NoError(t, f.CheckLayout(DefaultLayout()), "no limits reported")
}

func TestSerialFlashErrorCode(t *testing.T) {
	f, dev := newSerialFixture(t)
	dev.failCode = ResultUnsupported

	err := f.EraseRow(DefaultAppBase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
	assert.Zero(t, dev.flash.Erases)
}

func TestSerialFlashAddressError(t *testing.T) {
	f, _ := newSerialFixture(t)
	err := f.WritePage(DefaultAppBase+1, make([]byte, DefaultPageSize))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address error")
}

func TestSerialFlashClosed(t *testing.T) {
	f := NewSerialFlash("/dev/null-port", 115200)
	_, err := f.ReadFlash(DefaultAppBase, 4)
	assert.Error(t, err)
}

func TestCommandBytes(t *testing.T) {
	cmd := newEraseFlashCommand(0x12000, 1)
	assert.Equal(t, []byte{commandEraseFlash, 1, 0, 0x55, 0xAA, 0x00, 0x20, 0x01, 0x00}, cmd.GetBytes())

	cmd = newWriteFlashCommand(0x12040, []byte{1, 2})
	assert.Equal(t, []byte{commandWriteFlash, 2, 0, 0x55, 0xAA, 0x40, 0x20, 0x01, 0x00, 1, 2}, cmd.GetBytes())
}
