package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amrbekhit/stationboot"
)

func newOptions(t *testing.T, command string) options {
	dir := t.TempDir()
	return options{
		volumeDir: dir,
		flashFile: filepath.Join(dir, "flash.bin"),
		command:   command,
		boots:     1,
	}
}

func TestRunSavesFlashOnError(t *testing.T) {
	opts := newOptions(t, "erase")

	assert.Error(t, run(opts, []string{"not-an-address"}))

	fi, err := os.Stat(opts.flashFile)
	require.NoError(t, err)
	assert.Equal(t, int64(stationboot.DefaultConfig().FlashSize), fi.Size())
}

func TestRunWriteCommand(t *testing.T) {
	opts := newOptions(t, "write")
	dataFile := filepath.Join(opts.volumeDir, "data.bin")
	require.NoError(t, ioutil.WriteFile(dataFile, []byte{1, 2, 3}, 0644))

	require.NoError(t, run(opts, []string{"0x12000", dataFile}))

	flash, err := ioutil.ReadFile(opts.flashFile)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0xFF}, flash[0x12000:0x12004])
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	opts := newOptions(t, "format")
	assert.Error(t, run(opts, nil))
}

func TestRunBoot(t *testing.T) {
	opts := newOptions(t, "")
	volume := stationboot.NewDirVolume(opts.volumeDir)
	require.NoError(t, stationboot.StageImage(volume, stationboot.DefaultImageFile, []byte{0x00, 0x80, 0x00, 0x20}))
	require.NoError(t, stationboot.TriggerUpdate(volume, stationboot.DefaultFlagFile))

	require.NoError(t, run(opts, nil))

	flash, err := ioutil.ReadFile(opts.flashFile)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x80, 0x00, 0x20}, flash[0x12000:0x12004])
	_, err = os.Stat(filepath.Join(opts.volumeDir, stationboot.DefaultFlagFile))
	assert.True(t, os.IsNotExist(err))
}
