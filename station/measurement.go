// Package station runs the sensing application: it samples the airflow,
// environmental and inertial sensors, hands readings to the MQTT publisher
// over a bounded queue, keeps the latest reading of each sensor for the
// console, and lets the console request a firmware update.
package station

import (
	"fmt"
	"time"
)

// Kind identifies the sensor a measurement came from.
type Kind int

// Sensor kinds.
const (
	KindAir Kind = iota
	KindEnv
	KindIMU
)

func (k Kind) String() string {
	switch k {
	case KindAir:
		return "air"
	case KindEnv:
		return "env"
	case KindIMU:
		return "imu"
	default:
		return "unknown"
	}
}

// Topic returns the MQTT topic readings of this kind are published on.
func (k Kind) Topic() string {
	switch k {
	case KindAir:
		return "Air_Velocity_Data"
	case KindEnv:
		return "Environmental_Data"
	case KindIMU:
		return "IMU_Data"
	default:
		return "Unknown_Data"
	}
}

// Measurement is one sensor reading. Only the fields of its Kind are set.
type Measurement struct {
	Kind Kind      `json:"-"`
	Time time.Time `json:"time"`

	// Air velocity in m/s.
	AirSpeed float64 `json:"air_speed,omitempty"`

	// Environmental sensor: degrees Celsius, % relative humidity, hPa and ohms.
	Temperature   float64 `json:"temperature,omitempty"`
	Humidity      float64 `json:"humidity,omitempty"`
	Pressure      float64 `json:"pressure,omitempty"`
	GasResistance float64 `json:"gas_resistance,omitempty"`

	// Acceleration in mg.
	AccelX float64 `json:"xmg,omitempty"`
	AccelY float64 `json:"ymg,omitempty"`
	AccelZ float64 `json:"zmg,omitempty"`
}

// String formats the reading the way the console prints it.
func (m Measurement) String() string {
	switch m.Kind {
	case KindAir:
		return fmt.Sprintf("AirFlow: %0.2f m/s", m.AirSpeed)
	case KindEnv:
		return fmt.Sprintf("T: %0.2f H: %0.2f P: %0.2f", m.Temperature, m.Humidity, m.Pressure)
	case KindIMU:
		return fmt.Sprintf("Acc [mg]: %0.2f %0.2f %0.2f", m.AccelX, m.AccelY, m.AccelZ)
	default:
		return "unknown measurement"
	}
}

// Sensor is a sensor driver.
type Sensor interface {
	Kind() Kind
	ReadValue() (Measurement, error)
}

// SensorFunc adapts a function to the Sensor interface.
type SensorFunc struct {
	SensorKind Kind
	Read       func() (Measurement, error)
}

// Kind implements Sensor.
func (s SensorFunc) Kind() Kind { return s.SensorKind }

// ReadValue implements Sensor.
func (s SensorFunc) ReadValue() (Measurement, error) {
	m, err := s.Read()
	m.Kind = s.SensorKind
	return m, err
}
