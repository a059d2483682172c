package stationboot

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Names of the files used by the update protocol on the volume's root.
const (
	DefaultFlagFile  = "boot_flag.txt"
	DefaultImageFile = "Application.bin"

	selfTestTextFile   = "sd_mmc_test.txt"
	selfTestBinaryFile = "sd_binary.bin"
	selfTestText       = "Test SD/MMC stack\n"
)

// ImageFile is an open file on a Volume.
type ImageFile interface {
	io.ReadCloser
	Size() int64
}

// Volume is the removable storage the bootloader reads from.
// Remove must succeed when the file is already absent. Open must return a
// *FileNotFoundError when the file does not exist.
type Volume interface {
	Mount() error
	Open(name string) (ImageFile, error)
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
}

// DirVolume is a Volume backed by a directory, typically the mount point of
// an SD card.
type DirVolume struct {
	Root string
}

// NewDirVolume returns a volume rooted at dir.
func NewDirVolume(dir string) *DirVolume {
	return &DirVolume{Root: dir}
}

func (v *DirVolume) path(name string) string {
	return filepath.Join(v.Root, filepath.Clean("/"+name))
}

// Mount checks that the volume root is an accessible directory.
func (v *DirVolume) Mount() error {
	fi, err := os.Stat(v.Root)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", v.Root)
	}
	return nil
}

type dirFile struct {
	*os.File
	size int64
}

func (f *dirFile) Size() int64 { return f.size }

// Open opens name for reading.
func (v *DirVolume) Open(name string) (ImageFile, error) {
	f, err := os.Open(v.path(name))
	if os.IsNotExist(err) {
		return nil, &FileNotFoundError{Name: name}
	}
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &dirFile{File: f, size: fi.Size()}, nil
}

// Create creates or truncates name for writing.
func (v *DirVolume) Create(name string) (io.WriteCloser, error) {
	return os.Create(v.path(name))
}

// Remove deletes name. A missing file is not an error.
func (v *DirVolume) Remove(name string) error {
	err := os.Remove(v.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeFile(v Volume, name string, data []byte) error {
	w, err := v.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func readFile(v Volume, name string) ([]byte, error) {
	f, err := v.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := bytes.NewBuffer(make([]byte, 0, f.Size()))
	_, err = io.Copy(buf, f)
	return buf.Bytes(), err
}

// mountVolume mounts v and, when selfTest is set, writes the storage test
// files: a line of text and a binary file holding every byte value once.
func mountVolume(v Volume, selfTest bool) error {
	if err := v.Mount(); err != nil {
		return &MountError{Err: err}
	}
	if !selfTest {
		return nil
	}

	pkgLog.Debugf("write to test file %s", selfTestTextFile)
	if err := writeFile(v, selfTestTextFile, []byte(selfTestText)); err != nil {
		return &MountError{Err: errors.Wrap(err, "text self-test")}
	}

	bin := make([]byte, 256)
	for i := range bin {
		bin[i] = byte(i)
	}
	pkgLog.Debugf("write to test file %s", selfTestBinaryFile)
	if err := writeFile(v, selfTestBinaryFile, bin); err != nil {
		return &MountError{Err: errors.Wrap(err, "binary self-test")}
	}
	return nil
}
