package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/amrbekhit/stationboot"
)

var commands = map[string]func(target, []string) error{
	"read":     processReadFlash,
	"erase":    processEraseFlash,
	"write":    processWriteFlash,
	"checksum": processChecksum,
	"trigger":  processTrigger,
	"stage":    processStage,
}

const appVersion = "0.3.0"

func main() {
	version := flag.Bool("version", false, "Prints the program version.")
	verbose := flag.BoolP("verbose", "v", false, "Enable verbose logging.")
	volumeDir := flag.StringP("volume", "d", ".", "Directory the removable storage is mounted on.")
	flashFile := flag.StringP("flash", "f", "", "File holding the simulated flash contents. Ignored when a serial port is configured.")
	port := flag.StringP("port", "p", "", "Serial port of the target NVM. Overrides the profile.")
	boots := flag.IntP("boots", "n", 3, "Number of boots to attempt when storage fails.")
	profile := flag.String("profile", "", "Bootloader profile yaml file. Example:\n\n"+stationboot.ExampleConfig())

	cmdList := []string{}
	for key := range commands {
		cmdList = append(cmdList, key)
	}
	command := flag.String("cmd", "", fmt.Sprintf("Command to run instead of booting, one of: %+v\n"+
		"Memory read commands have the following usage: cmdname addr length, e.g. read 0x12000 256\n"+
		"Memory write commands have the following usage: cmdname addr datafile, e.g. write 0x12000 datafile",
		cmdList))

	flag.Parse()

	if *version {
		fmt.Println(appVersion)
		return
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	stationboot.SetLogger(log.StandardLogger())

	opts := options{
		profile:   *profile,
		port:      *port,
		volumeDir: *volumeDir,
		flashFile: *flashFile,
		command:   *command,
		boots:     *boots,
	}
	if err := run(opts, flag.Args()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

type options struct {
	profile, port        string
	volumeDir, flashFile string
	command              string
	boots                int
}

// run sets up the target and runs the command or the boot sequence. The
// serial port is closed and the simulated flash saved on every path.
func run(opts options, args []string) error {
	cfg := stationboot.DefaultConfig()
	if opts.profile != "" {
		var err error
		if cfg, err = stationboot.LoadConfig(opts.profile); err != nil {
			return err
		}
	}
	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}

	t := target{config: cfg, volume: stationboot.NewDirVolume(opts.volumeDir)}
	if cfg.Serial.Port != "" {
		sf := stationboot.NewSerialFlash(cfg.Serial.Port, cfg.Serial.Baud)
		log.Infof("connecting to device...")
		if err := sf.Connect(); err != nil {
			return err
		}
		defer sf.Disconnect()
		log.Infof("connected")
		if err := sf.CheckLayout(cfg.Layout); err != nil {
			return errors.Wrap(err, "profile does not match device")
		}
		t.flash = sf
	} else {
		sim, err := loadSimulatedFlash(opts.flashFile, cfg)
		if err != nil {
			return err
		}
		defer saveSimulatedFlash(opts.flashFile, sim)
		t.flash = sim
	}

	if opts.command != "" {
		f, ok := commands[opts.command]
		if !ok {
			return errors.Errorf("invalid command %v", opts.command)
		}
		return f(t, args)
	}
	return boot(t, opts.boots)
}

func boot(t target, boots int) error {
	var platform stationboot.Platform = &stationboot.HostPlatform{}
	if t.config.PowerGPIO > 0 {
		platform = stationboot.NewGPIOPlatform(t.config.PowerGPIO)
	}

	d := stationboot.NewDispatcher(platform, t.volume, t.flash, t.config.Layout, t.config.Boot)
	d.SetProgressCallback(func(p stationboot.Progress) {
		log.Debugf("row %d/%d, %d/%d bytes", p.Row, p.TotalRows, p.BytesWritten, p.TotalBytes)
	})

	for i := 0; i < boots; i++ {
		report, err := d.Run()
		var restart *stationboot.RestartError
		if errors.As(err, &restart) {
			continue
		}
		if err != nil {
			return err
		}
		if report.UpdateFound {
			log.Infof("update: %d rows, %d bytes, %d checksum mismatches, error: %v",
				report.Result.Rows, report.Result.Bytes, report.Result.Mismatches, report.TransferErr)
		}
		return nil
	}
	return errors.Errorf("storage unavailable after %d boots", boots)
}

func loadSimulatedFlash(path string, cfg stationboot.Config) (*stationboot.MemoryFlash, error) {
	sim := stationboot.NewMemoryFlash(0, cfg.FlashSize, cfg.Layout)
	if path == "" {
		return sim, nil
	}
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return sim, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read flash file")
	}
	copy(sim.Bytes(), data)
	return sim, nil
}

func saveSimulatedFlash(path string, sim *stationboot.MemoryFlash) {
	if path == "" || sim == nil {
		return
	}
	if err := ioutil.WriteFile(path, sim.Bytes(), 0644); err != nil {
		log.Errorf("failed to save flash file: %v", err)
	}
}
