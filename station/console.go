package station

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"
)

const clearScreen = "\x1b[2J"

// Console is the station's interactive command line.
type Console struct {
	Shell *ishell.Shell

	sensors map[Kind]Sensor
	cache   *Cache
	queue   *Queue
	updater *Updater
}

// NewConsole creates a console. sensors are read on demand by the air
// command; the env and imu commands report the cached readings.
func NewConsole(cache *Cache, queue *Queue, updater *Updater, sensors ...Sensor) *Console {
	c := &Console{
		sensors: make(map[Kind]Sensor),
		cache:   cache,
		queue:   queue,
		updater: updater,
	}
	for _, s := range sensors {
		c.sensors[s.Kind()] = s
	}
	return c
}

// Start builds the ishell shell and registers the commands.
func (c *Console) Start() *ishell.Shell {
	c.Shell = ishell.New()
	c.Shell.Println("Station CLI. Type help to view a list of registered commands.")
	c.Shell.AddCmd(&ishell.Cmd{
		Name: "imu",
		Help: "Returns a value from the IMU",
		Func: func(ctx *ishell.Context) { ctx.Println(c.Cached(KindIMU)) },
	})
	c.Shell.AddCmd(&ishell.Cmd{
		Name: "env",
		Help: "Returns a value from the environmental sensor",
		Func: func(ctx *ishell.Context) { ctx.Println(c.Cached(KindEnv)) },
	})
	c.Shell.AddCmd(&ishell.Cmd{
		Name: "air",
		Help: "Returns a value from the airflow sensor and publishes it",
		Func: func(ctx *ishell.Context) {
			out, err := c.Air()
			if err != nil {
				ctx.Err(err)
				return
			}
			ctx.Println(out)
		},
	})
	c.Shell.AddCmd(&ishell.Cmd{
		Name: "fw",
		Help: "Download a file and perform an FW update",
		Func: func(ctx *ishell.Context) {
			if err := c.Update(context.Background()); err != nil {
				ctx.Err(err)
			}
		},
	})
	c.Shell.AddCmd(&ishell.Cmd{
		Name: "cls",
		Help: "Clears the terminal screen",
		Func: func(ctx *ishell.Context) { ctx.Print(clearScreen) },
	})
	return c.Shell
}

// Cached returns the latest reading of kind formatted for the console.
func (c *Console) Cached(kind Kind) string {
	m, ok := c.cache.Get(kind)
	if !ok {
		return fmt.Sprintf("no %v data yet", kind)
	}
	return m.String()
}

// Air reads the airflow sensor, queues the reading for publishing and
// returns it formatted.
func (c *Console) Air() (string, error) {
	s, ok := c.sensors[KindAir]
	if !ok {
		return "", errors.New("no airflow sensor")
	}
	m, err := s.ReadValue()
	if err != nil {
		return "", err
	}
	c.cache.Put(m)
	if c.queue != nil {
		c.queue.Offer(m)
	}
	return m.String(), nil
}

// Update requests a firmware update.
func (c *Console) Update(ctx context.Context) error {
	if c.updater == nil {
		return errors.New("firmware update not configured")
	}
	return c.updater.RequestUpdate(ctx)
}
