package stationboot

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

const (
	commandGetVersion = 0x00
	commandReadFlash  = 0x01
	commandWriteFlash = 0x02
	commandEraseFlash = 0x03
	commandReset      = 0x09
)

const (
	frameStart           = 0x55
	respLengthGetVersion = 16
)

// Command result codes.
const (
	ResultSuccess      = 0x01
	ResultUnsupported  = 0xFF
	ResultAddressError = 0xFE
)

// GetResponseCodeString returns the string representation of a bootloader response code.
func GetResponseCodeString(code int) string {
	switch code {
	case ResultSuccess:
		return "success"
	case ResultUnsupported:
		return "unsupported"
	case ResultAddressError:
		return "address error"
	default:
		return "invalid response code"
	}
}

// VersionInfo holds the results of the Request Version command. Zero sizes
// mean the device does not report a limit.
type VersionInfo struct {
	VersionMinor, VersionMajor int
	// Largest data payload of one command or response, in bytes.
	MaxPacketSize int
	DeviceID      int
	// Write pages per erase row.
	EraseRowSize int
	// Write pages per write command.
	WriteRowSize int
}

// Command represents a request to a serial-attached NVM.
type Command struct {
	Command        uint8
	UnlockSequence [2]byte
	Address        uint32
	Length         uint16
	Data           []byte
	// Response length, excluding the success code.
	responseLength     int
	expectsSuccessCode bool
}

var unlockSequence = [2]byte{0x55, 0xAA}

// GetBytes returns a byte slice containing the data for the command.
func (c Command) GetBytes() []byte {
	b := []byte{c.Command}
	if len(c.Data) > 0 {
		c.Length = uint16(len(c.Data))
	}
	var word [4]byte
	binary.LittleEndian.PutUint16(word[:], c.Length)
	b = append(b, word[:2]...)
	b = append(b, c.UnlockSequence[0], c.UnlockSequence[1])
	binary.LittleEndian.PutUint32(word[:], c.Address)
	b = append(b, word[:]...)
	return append(b, c.Data...)
}

func newGetVersionCommand() Command {
	return Command{Command: commandGetVersion, responseLength: respLengthGetVersion}
}

func newReadFlashCommand(address uint32, length uint16) Command {
	return Command{
		Command:        commandReadFlash,
		Address:        address,
		Length:         length,
		responseLength: int(length),
	}
}

func newWriteFlashCommand(address uint32, data []byte) Command {
	return Command{
		Command:            commandWriteFlash,
		Address:            address,
		Data:               data,
		UnlockSequence:     unlockSequence,
		expectsSuccessCode: true,
	}
}

func newEraseFlashCommand(address uint32, numRows uint16) Command {
	return Command{
		Command:            commandEraseFlash,
		Address:            address,
		Length:             numRows,
		UnlockSequence:     unlockSequence,
		expectsSuccessCode: true,
	}
}

func newResetCommand() Command {
	return Command{Command: commandReset}
}

func parseGetVersionResponse(data []byte) (VersionInfo, error) {
	if len(data) != respLengthGetVersion {
		return VersionInfo{}, errors.New("invalid response length")
	}
	return VersionInfo{
		VersionMinor:  int(data[0]),
		VersionMajor:  int(data[1]),
		MaxPacketSize: int(binary.LittleEndian.Uint16(data[2:])),
		DeviceID:      int(binary.LittleEndian.Uint16(data[6:])),
		EraseRowSize:  int(data[10]),
		WriteRowSize:  int(data[11]),
	}, nil
}

// SerialFlash is a FlashController for an NVM reached over a serial link
// speaking the unified bootloader framing.
type SerialFlash struct {
	portConfig serial.Config
	port       io.ReadWriter
	closer     io.Closer
	info       VersionInfo
}

// NewSerialFlash creates a serial NVM controller. Call Connect before use.
func NewSerialFlash(port string, baud int) *SerialFlash {
	f := new(SerialFlash)
	f.portConfig.Name = port
	f.portConfig.Baud = baud
	f.portConfig.ReadTimeout = time.Second
	return f
}

// NewSerialFlashOn creates a serial NVM controller over an already open
// transport.
func NewSerialFlashOn(rw io.ReadWriter) *SerialFlash {
	return &SerialFlash{port: rw}
}

// Connect opens the serial port if needed and reads the device version.
func (f *SerialFlash) Connect() error {
	if f.port == nil {
		p, err := serial.OpenPort(&f.portConfig)
		if err != nil {
			return errors.Wrap(err, "could not open serial")
		}
		// On Linux with USB serial ports, in order for flush to work properly
		// we need to delay a little before flushing to make sure that any
		// received data has made its way up the driver stack.
		time.Sleep(time.Millisecond * 100)
		p.Flush()
		f.port, f.closer = p, p
	}

	resp, err := f.send(newGetVersionCommand())
	if err != nil {
		return errors.Wrap(err, "failed to get device info")
	}
	if f.info, err = parseGetVersionResponse(resp); err != nil {
		return errors.Wrap(err, "failed to parse version response")
	}
	pkgLog.Debugf("serial nvm version %d.%d device %X erase row %d write row %d",
		f.info.VersionMajor, f.info.VersionMinor, f.info.DeviceID, f.info.EraseRowSize, f.info.WriteRowSize)
	return nil
}

// CheckLayout verifies that layout matches the geometry reported by the
// device. Call it after Connect.
func (f *SerialFlash) CheckLayout(layout Layout) error {
	if f.info.EraseRowSize != 0 && f.info.EraseRowSize != layout.PagesPerRow() {
		return errors.Errorf("device erases %d pages per row, layout has %d", f.info.EraseRowSize, layout.PagesPerRow())
	}
	if f.info.WriteRowSize > 1 {
		return errors.Errorf("device writes %d pages per command, only single page writes are supported", f.info.WriteRowSize)
	}
	if f.info.MaxPacketSize != 0 && layout.PageSize > f.info.MaxPacketSize {
		return errors.Errorf("page size %d exceeds the device packet size %d", layout.PageSize, f.info.MaxPacketSize)
	}
	return nil
}

// Disconnect closes the serial port opened by Connect.
func (f *SerialFlash) Disconnect() {
	if f.closer != nil {
		f.closer.Close()
		f.closer, f.port = nil, nil
	}
}

// VersionInfo returns the device info read by Connect.
func (f *SerialFlash) VersionInfo() VersionInfo {
	return f.info
}

func (f *SerialFlash) recv(count int) ([]byte, error) {
	resp := make([]byte, 0, count)
	for len(resp) < cap(resp) {
		buf := make([]byte, cap(resp)-len(resp))
		n, err := f.port.Read(buf)
		if err != nil {
			return nil, err
		}
		resp = append(resp, buf[:n]...)
	}
	return resp, nil
}

func (f *SerialFlash) send(cmd Command) ([]byte, error) {
	if f.port == nil {
		return nil, errors.New("serial port is closed")
	}
	tx := append([]byte{frameStart}, cmd.GetBytes()...)
	if _, err := f.port.Write(tx); err != nil {
		return nil, err
	}
	// Wait for the echoed command
	echoLen := len(tx) - len(cmd.Data)
	echo, err := f.recv(echoLen)
	if err != nil {
		return nil, err
	}

	// The unlock bytes are not echoed back.
	for i := 0; i < echoLen; i++ {
		if i != 4 && i != 5 && tx[i] != echo[i] {
			return nil, errors.Errorf("echo mismatch at position %v", i)
		}
	}

	if cmd.expectsSuccessCode {
		code, err := f.recv(1)
		if err != nil {
			return nil, err
		}
		if code[0] != ResultSuccess {
			return nil, errors.Errorf("command returned code %v: %v", code[0], GetResponseCodeString(int(code[0])))
		}
	}
	if cmd.responseLength == 0 {
		return []byte{}, nil
	}
	return f.recv(cmd.responseLength)
}

// EraseRow erases the single row at address.
func (f *SerialFlash) EraseRow(address uint32) error {
	_, err := f.send(newEraseFlashCommand(address, 1))
	return errors.Wrap(err, "erase flash failed")
}

// WritePage writes one page at address.
func (f *SerialFlash) WritePage(address uint32, data []byte) error {
	_, err := f.send(newWriteFlashCommand(address, data))
	return errors.Wrap(err, "write flash failed")
}

// ReadFlash reads length bytes at address, splitting the request into reads
// no larger than the device's packet size.
func (f *SerialFlash) ReadFlash(address uint32, length int) ([]byte, error) {
	chunk := 0xFFFF
	if f.info.MaxPacketSize > 0 && f.info.MaxPacketSize < chunk {
		chunk = f.info.MaxPacketSize
	}
	out := bytes.NewBuffer(make([]byte, 0, length))
	for length > 0 {
		n := length
		if n > chunk {
			n = chunk
		}
		resp, err := f.send(newReadFlashCommand(address, uint16(n)))
		if err != nil {
			return nil, errors.Wrap(err, "read flash failed")
		}
		out.Write(resp)
		address += uint32(n)
		length -= n
	}
	return out.Bytes(), nil
}

// ApplyErrataWorkaround is a no-op: the remote device owns its cache.
func (f *SerialFlash) ApplyErrataWorkaround(phase ErrataPhase) {
	pkgLog.Debugf("serial nvm: errata %v handled on device", phase)
}

// Reset asks the remote device to reset into its application.
func (f *SerialFlash) Reset() error {
	_, err := f.send(newResetCommand())
	return errors.Wrap(err, "reset failed")
}
