package stationboot

import (
	"io"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// loadHex parses Intel HEX data.
func loadHex(data io.Reader) (*gohex.Memory, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(data); err != nil {
		return nil, err
	}
	return mem, nil
}

// HexToImage converts an Intel HEX build of the application into the flat
// binary the bootloader copies to flash. The binary starts at layout.AppBase;
// gaps are filled with ErasedByte. Segments below the application base, such
// as a bundled bootloader, are rejected.
func HexToImage(data io.Reader, layout Layout) ([]byte, error) {
	mem, err := loadHex(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse hex")
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, errors.New("hex file holds no data")
	}
	var end uint32
	for _, segment := range segments {
		if segment.Address < layout.AppBase {
			return nil, errors.Errorf("data segment at %X is below the application base %X", segment.Address, layout.AppBase)
		}
		if e := segment.Address + uint32(len(segment.Data)); e > end {
			end = e
		}
		pkgLog.Debugf("loaded segment at %X length %v", segment.Address, len(segment.Data))
	}
	return mem.ToBinary(layout.AppBase, end-layout.AppBase, ErasedByte), nil
}

// StageImage writes image to the volume as the staged application binary.
func StageImage(v Volume, imageFile string, image []byte) error {
	return errors.Wrapf(writeFile(v, imageFile, image), "could not stage %s", imageFile)
}

// StageHexImage converts a HEX build and stages it on the volume.
func StageHexImage(v Volume, imageFile string, hex io.Reader, layout Layout) (int, error) {
	image, err := HexToImage(hex, layout)
	if err != nil {
		return 0, err
	}
	return len(image), StageImage(v, imageFile, image)
}
