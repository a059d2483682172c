package stationboot

import (
	"time"

	"github.com/pkg/errors"
)

// State is a step of the boot sequence.
type State int

// Boot sequence states, in order.
const (
	StateInit State = iota
	StateFSCheck
	StateUpdateCheck
	StateUpdateTransfer
	StateCleanup
	StateJump
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateFSCheck:
		return "FS_CHECK"
	case StateUpdateCheck:
		return "UPDATE_CHECK"
	case StateUpdateTransfer:
		return "UPDATE_TRANSFER"
	case StateCleanup:
		return "CLEANUP"
	case StateJump:
		return "JUMP"
	default:
		return "UNKNOWN"
	}
}

// BootOptions holds boot sequence options.
type BootOptions struct {
	FlagFile   string     `yaml:"flag_file"`
	ImageFile  string     `yaml:"image_file"`
	FlagPolicy FlagPolicy `yaml:"flag_policy"`
	// Number of transfers attempted for one flag before the update is
	// abandoned. Only used with FlagRetain; zero means no limit.
	MaxAttempts int `yaml:"max_attempts"`
	// If true, mounting writes the storage test files.
	SelfTest bool `yaml:"self_test"`
	// Delay before restarting after a storage failure.
	RestartDelay time.Duration `yaml:"restart_delay"`
	// Delay after the exit message, letting the console drain.
	ExitDelay time.Duration `yaml:"exit_delay"`

	Transfer TransferOptions `yaml:"transfer"`
}

// DefaultBootOptions returns the options matching the station firmware.
func DefaultBootOptions() BootOptions {
	return BootOptions{
		FlagFile:     DefaultFlagFile,
		ImageFile:    DefaultImageFile,
		FlagPolicy:   FlagRetain,
		MaxAttempts:  3,
		RestartDelay: 5 * time.Second,
		ExitDelay:    100 * time.Millisecond,
	}
}

// BootReport describes what a run of the dispatcher did.
type BootReport struct {
	States []State
	// UpdateFound is set when the update flag was present.
	UpdateFound bool
	// Abandoned is set when the flag had used up its attempts.
	Abandoned bool
	// Skipped is set when the attempt count could not be recorded and the
	// update was left for a later boot.
	Skipped     bool
	Result      TransferResult
	TransferErr error
	Vectors     VectorTable
}

// Dispatcher runs the bootloader's start-up sequence.
type Dispatcher struct {
	platform Platform
	volume   Volume
	flash    FlashController
	layout   Layout
	options  BootOptions
	progress ProgressCallback
}

// NewDispatcher creates a dispatcher for the given hardware.
func NewDispatcher(platform Platform, volume Volume, flash FlashController, layout Layout, options BootOptions) *Dispatcher {
	return &Dispatcher{
		platform: platform,
		volume:   volume,
		flash:    flash,
		layout:   layout,
		options:  options,
	}
}

// SetProgressCallback installs a callback for update progress.
func (d *Dispatcher) SetProgressCallback(cb ProgressCallback) {
	d.progress = cb
}

// Run executes INIT, FS_CHECK, UPDATE_CHECK, the optional UPDATE_TRANSFER,
// CLEANUP and JUMP. On target it does not return. Off-target it returns after
// the platform's Jump, or with a *RestartError when storage could not be
// brought up. A failed update never prevents the jump.
func (d *Dispatcher) Run() (BootReport, error) {
	var report BootReport
	retain := false

	state := StateInit
	for {
		report.States = append(report.States, state)
		switch state {
		case StateInit:
			if err := d.platform.Init(); err != nil {
				return report, d.restart(errors.Wrap(err, "platform init failed"))
			}
			pkgLog.Infof("ENTER BOOTLOADER")
			state = StateFSCheck

		case StateFSCheck:
			if err := mountVolume(d.volume, d.options.SelfTest); err != nil {
				pkgLog.Errorf("storage failed! Check your connections. System will restart in %v...", d.options.RestartDelay)
				return report, d.restart(err)
			}
			pkgLog.Infof("storage mount success")
			state = StateUpdateCheck

		case StateUpdateCheck:
			state, retain = d.checkUpdate(&report)

		case StateUpdateTransfer:
			report.Result, report.TransferErr = d.transfer()
			if report.TransferErr != nil {
				pkgLog.Errorf("firmware update failed: %v", report.TransferErr)
				var nf *FileNotFoundError
				retain = d.options.FlagPolicy == FlagRetain && !errors.As(report.TransferErr, &nf)
			} else {
				pkgLog.Infof("update complete")
			}
			state = StateCleanup

		case StateCleanup:
			d.cleanup(retain)
			state = StateJump

		case StateJump:
			vt, err := ReadVectorTable(d.flash, d.layout)
			if err != nil {
				return report, err
			}
			report.Vectors = vt
			d.platform.Jump(vt)
			return report, nil
		}
	}
}

func (d *Dispatcher) restart(cause error) error {
	d.platform.Delay(d.options.RestartDelay)
	d.platform.Restart()
	return &RestartError{Cause: cause}
}

// checkUpdate picks the state after UPDATE_CHECK. The returned flag is set
// when cleanup must leave the flag and image on the volume.
func (d *Dispatcher) checkUpdate(report *BootReport) (State, bool) {
	retainPolicy := d.options.FlagPolicy == FlagRetain

	pending, attempts, err := UpdatePending(d.volume, d.options.FlagFile)
	if err != nil {
		pkgLog.Errorf("could not read boot flag: %v", err)
		return StateCleanup, retainPolicy
	}
	if !pending {
		pkgLog.Debugf("no boot flag")
		return StateCleanup, false
	}
	report.UpdateFound = true

	if !retainPolicy {
		if err := d.volume.Remove(d.options.FlagFile); err != nil {
			pkgLog.Warnf("could not remove boot flag: %v", err)
		}
		pkgLog.Infof("found boot flag, updating firmware")
		return StateUpdateTransfer, false
	}

	if d.options.MaxAttempts > 0 && attempts >= d.options.MaxAttempts {
		pkgLog.Errorf("boot flag found after %d failed attempts, abandoning update", attempts)
		report.Abandoned = true
		return StateCleanup, false
	}
	// An attempt that cannot be counted could repeat on every boot.
	if err := recordAttempt(d.volume, d.options.FlagFile, attempts+1); err != nil {
		pkgLog.Errorf("could not record update attempt, skipping update: %v", err)
		report.Skipped = true
		return StateCleanup, true
	}
	pkgLog.Infof("found boot flag (attempt %d), updating firmware", attempts+1)
	return StateUpdateTransfer, false
}

func (d *Dispatcher) transfer() (TransferResult, error) {
	image, err := d.volume.Open(d.options.ImageFile)
	if err != nil {
		pkgLog.Errorf("couldn't find the file %s", d.options.ImageFile)
		return TransferResult{}, err
	}
	defer image.Close()

	t := NewTransferrer(d.flash, d.layout, d.options.Transfer)
	t.SetProgressCallback(d.progress)
	return t.TransferImage(image)
}

func (d *Dispatcher) cleanup(retain bool) {
	if retain {
		pkgLog.Infof("keeping %s and %s for the next boot", d.options.FlagFile, d.options.ImageFile)
	} else if err := ClearUpdate(d.volume, d.options.FlagFile, d.options.ImageFile); err != nil {
		pkgLog.Warnf("cleanup: %v", err)
	}

	pkgLog.Infof("EXIT BOOTLOADER")
	d.platform.Delay(d.options.ExitDelay)
	d.platform.Deinit()
}
