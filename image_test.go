package stationboot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHex = `:020000040001F9
:0420000000100020AC
:02200800AABB71
:00000001FF
`

func TestHexToImage(t *testing.T) {
	image, err := HexToImage(strings.NewReader(testHex), DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x10, 0x00, 0x20, 0xFF, 0xFF, 0xFF, 0xFF, 0xAA, 0xBB}, image)
}

func TestHexToImageRejectsBootloaderRegion(t *testing.T) {
	_, err := HexToImage(strings.NewReader(":0400000000100020CC\n:00000001FF\n"), DefaultLayout())
	assert.Error(t, err)
}

func TestStageHexImage(t *testing.T) {
	v := NewDirVolume(t.TempDir())
	n, err := StageHexImage(v, DefaultImageFile, strings.NewReader(testHex), DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	data, err := readFile(v, DefaultImageFile)
	require.NoError(t, err)
	assert.Len(t, data, 10)
}
