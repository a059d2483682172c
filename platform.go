package stationboot

import (
	"encoding/binary"
	"time"

	"github.com/piotrjaromin/gpio"
	"github.com/pkg/errors"
)

// VectorTable holds the words the jump to the application is built from.
type VectorTable struct {
	// Base is written to the vector table offset register.
	Base uint32
	// StackPointer is the application's initial main stack pointer.
	StackPointer uint32
	// ResetHandler is the application's entry point.
	ResetHandler uint32
}

// ReadVectorTable reads the initial stack pointer and reset vector from the
// start of the application image.
func ReadVectorTable(flash FlashController, layout Layout) (VectorTable, error) {
	words, err := flash.ReadFlash(layout.AppBase+stackPointerOffset, resetVectorOffset+4)
	if err != nil {
		return VectorTable{}, errors.Wrap(err, "could not read vector table")
	}
	return VectorTable{
		Base:         layout.AppBase,
		StackPointer: binary.LittleEndian.Uint32(words[stackPointerOffset:]),
		ResetHandler: binary.LittleEndian.Uint32(words[resetVectorOffset:]),
	}, nil
}

// Platform is the hardware the dispatcher runs on.
//
// Jump is the one operation whose safety cannot be checked: on target it sets
// MSP to vt.StackPointer, VTOR to vt.Base and branches to vt.ResetHandler, and
// never returns. An invalid image faults the core. Restart also never returns
// on target.
type Platform interface {
	Init() error
	Deinit()
	Delay(d time.Duration)
	Restart()
	Jump(vt VectorTable)
}

// HostPlatform runs the dispatcher off-target. Restart and Jump are recorded
// and return.
type HostPlatform struct {
	Restarts int
	Delays   []time.Duration
	Jumped   *VectorTable
	// If true, Delay returns immediately.
	SkipDelays bool
}

// Init is a no-op.
func (p *HostPlatform) Init() error {
	pkgLog.Debugf("host platform init")
	return nil
}

// Deinit is a no-op.
func (p *HostPlatform) Deinit() {
	pkgLog.Debugf("host platform deinit")
}

// Delay sleeps for d unless SkipDelays is set.
func (p *HostPlatform) Delay(d time.Duration) {
	p.Delays = append(p.Delays, d)
	if !p.SkipDelays {
		time.Sleep(d)
	}
}

// Restart counts the restart request.
func (p *HostPlatform) Restart() {
	p.Restarts++
	pkgLog.Infof("system restart #%d", p.Restarts)
}

// Jump records the vector table the application would be entered with.
func (p *HostPlatform) Jump(vt VectorTable) {
	pkgLog.Infof("jump to application: SP=%08X VTOR=%08X PC=%08X", vt.StackPointer, vt.Base, vt.ResetHandler)
	p.Jumped = &vt
}

// GPIOPlatform drives a target board from a Linux host. A restart
// power-cycles the target through a GPIO line feeding its supply switch.
type GPIOPlatform struct {
	HostPlatform
	PowerGPIO int

	pinPower gpio.Pin
	// Set while pinPower is exported.
	pinReady bool
}

// NewGPIOPlatform creates a platform controlling the target's power on the
// given GPIO number.
func NewGPIOPlatform(powerGPIO int) *GPIOPlatform {
	return &GPIOPlatform{PowerGPIO: powerGPIO}
}

// Init exports the power pin and switches the target on.
func (p *GPIOPlatform) Init() error {
	pin, err := gpio.NewOutput(uint(p.PowerGPIO), true)
	if err != nil {
		return errors.Wrap(err, "could not setup power pin")
	}
	p.pinPower, p.pinReady = pin, true
	return nil
}

// Deinit releases the power pin, leaving the target running.
func (p *GPIOPlatform) Deinit() {
	if !p.pinReady {
		return
	}
	p.pinPower.Cleanup()
	p.pinReady = false
}

// Restart power-cycles the target. Without an exported power pin the
// restart is only recorded.
func (p *GPIOPlatform) Restart() {
	p.HostPlatform.Restart()
	if !p.pinReady {
		pkgLog.Warnf("power pin %d not set up, cannot power-cycle the target", p.PowerGPIO)
		return
	}
	p.pinPower.Low()
	time.Sleep(10 * time.Millisecond)
	p.pinPower.High()
	time.Sleep(10 * time.Millisecond)
}
