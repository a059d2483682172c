package stationboot

import (
	"hash/crc32"
)

// ChecksumPair holds the CRC of a row's source bytes and of the same row read
// back from flash.
type ChecksumPair struct {
	Source uint32
	Dest   uint32
}

// Match reports whether the source and flash checksums agree.
func (p ChecksumPair) Match() bool {
	return p.Source == p.Dest
}

// Checksum computes the CRC-32 of data with the IEEE 802.3 polynomial, the
// algorithm implemented by the SAM D21 DSU.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// rowChecksums computes the checksum pair for a freshly written row. The RAM
// checksum is bracketed by the errata workaround and always precedes the
// flash checksum.
func rowChecksums(flash FlashController, address uint32, source []byte) (ChecksumPair, error) {
	var pair ChecksumPair

	flash.ApplyErrataWorkaround(BeforeRAMChecksum)
	pair.Source = Checksum(source)
	flash.ApplyErrataWorkaround(AfterRAMChecksum)

	dest, err := flash.ReadFlash(address, len(source))
	if err != nil {
		return pair, err
	}
	pair.Dest = Checksum(dest)
	return pair, nil
}
