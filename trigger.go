package stationboot

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// FlagPolicy selects when the update flag is removed.
type FlagPolicy string

const (
	// FlagRetain keeps the flag until the transfer succeeds, so an
	// interrupted update is retried on the next boot.
	FlagRetain FlagPolicy = "retain"
	// FlagLegacy deletes the flag as soon as it is detected and always
	// removes the flag and image during cleanup.
	FlagLegacy FlagPolicy = "legacy"
)

// TriggerUpdate writes the update flag so that the bootloader programs the
// staged image on the next reset. Any previous attempt count is discarded.
func TriggerUpdate(v Volume, flagFile string) error {
	return errors.Wrap(writeFile(v, flagFile, nil), "could not create boot flag")
}

// UpdatePending reports whether the update flag exists and how many update
// attempts it records. A flag with unparseable content counts as zero
// attempts.
func UpdatePending(v Volume, flagFile string) (bool, int, error) {
	data, err := readFile(v, flagFile)
	if err != nil {
		var nf *FileNotFoundError
		if errors.As(err, &nf) {
			return false, 0, nil
		}
		return false, 0, err
	}
	attempts, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		attempts = 0
	}
	return true, attempts, nil
}

// recordAttempt rewrites the flag with the given attempt count.
func recordAttempt(v Volume, flagFile string, attempts int) error {
	return writeFile(v, flagFile, []byte(strconv.Itoa(attempts)))
}

// ClearUpdate removes the update flag and the staged image. It succeeds when
// either is already absent.
func ClearUpdate(v Volume, flagFile, imageFile string) error {
	if err := v.Remove(flagFile); err != nil {
		return errors.Wrapf(err, "could not remove %s", flagFile)
	}
	if err := v.Remove(imageFile); err != nil {
		return errors.Wrapf(err, "could not remove %s", imageFile)
	}
	return nil
}
