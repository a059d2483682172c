package main

import (
	"context"
	"math/rand"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/amrbekhit/stationboot"
	"github.com/amrbekhit/stationboot/station"
)

// Simulated drivers stand in for the FS3000, BME680 and LSM6DSO on a host.
func simulatedSensors() []station.Sensor {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return []station.Sensor{
		station.SensorFunc{SensorKind: station.KindAir, Read: func() (station.Measurement, error) {
			return station.Measurement{AirSpeed: 2 + r.Float64()}, nil
		}},
		station.SensorFunc{SensorKind: station.KindEnv, Read: func() (station.Measurement, error) {
			return station.Measurement{
				Temperature:   21 + r.Float64(),
				Humidity:      40 + 5*r.Float64(),
				Pressure:      1013 + r.Float64(),
				GasResistance: 50000 + 1000*r.Float64(),
			}, nil
		}},
		station.SensorFunc{SensorKind: station.KindIMU, Read: func() (station.Measurement, error) {
			return station.Measurement{AccelX: r.NormFloat64(), AccelY: r.NormFloat64(), AccelZ: 1000 + r.NormFloat64()}, nil
		}},
	}
}

func main() {
	verbose := flag.BoolP("verbose", "v", false, "Enable verbose logging.")
	configFile := flag.StringP("config", "c", "", "Station config yaml file.")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	stationboot.SetLogger(log.StandardLogger())

	cfg := station.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = station.LoadConfig(*configFile); err != nil {
			log.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sensors := simulatedSensors()
	queue := station.NewQueue(cfg.QueueSize, cfg.QueueTimeout)
	cache := station.NewCache()
	sampler := station.NewSampler(queue, cache,
		station.Task{Sensor: sensors[0], Period: cfg.AirPeriod},
		station.Task{Sensor: sensors[1], Period: cfg.EnvPeriod},
		station.Task{Sensor: sensors[2], Period: cfg.IMUPeriod},
	)
	go sampler.Run(ctx)

	if cfg.Broker != "" {
		pub, client, err := station.Connect(cfg.Broker)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Disconnect(250)
		go pub.Run(ctx, queue)
	}

	volume := stationboot.NewDirVolume(cfg.Volume)
	if err := volume.Mount(); err != nil {
		log.Fatalf("storage unavailable: %v", err)
	}
	updater := &station.Updater{
		Volume:    volume,
		FlagFile:  cfg.FlagFile,
		ImageFile: cfg.ImageFile,
		Delay:     cfg.UpdateDelay,
		Reset: func() {
			cancel()
			os.Exit(0)
		},
	}
	if cfg.ImageURL != "" {
		updater.Fetcher = &station.HTTPFetcher{URL: cfg.ImageURL}
	}

	console := station.NewConsole(cache, queue, updater, sensors...)
	console.Start().Run()
}
