package station

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func airReading(speed float64) Measurement {
	return Measurement{Kind: KindAir, AirSpeed: speed}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2, time.Millisecond)
	assert.True(t, q.Offer(airReading(1)))
	assert.True(t, q.Offer(airReading(2)))
	assert.False(t, q.Offer(airReading(3)))
	assert.Equal(t, 1, q.Dropped())

	assert.Equal(t, 1.0, (<-q.C()).AirSpeed)
	assert.True(t, q.Offer(airReading(4)))
	assert.Equal(t, 2.0, (<-q.C()).AirSpeed)
	assert.Equal(t, 4.0, (<-q.C()).AirSpeed)
}

func TestQueueWaitsForRoom(t *testing.T) {
	q := NewQueue(1, time.Second)
	require.True(t, q.Offer(airReading(1)))

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-q.C()
	}()
	assert.True(t, q.Offer(airReading(2)))
	assert.Zero(t, q.Dropped())
}

func TestCache(t *testing.T) {
	c := NewCache()
	_, ok := c.Get(KindEnv)
	assert.False(t, ok)

	c.Put(Measurement{Kind: KindEnv, Temperature: 21})
	c.Put(Measurement{Kind: KindEnv, Temperature: 22})
	m, ok := c.Get(KindEnv)
	require.True(t, ok)
	assert.Equal(t, 22.0, m.Temperature)
}

func TestSamplerSample(t *testing.T) {
	q := NewQueue(1, 0)
	c := NewCache()
	s := NewSampler(q, c)
	stamp := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	sensor := SensorFunc{SensorKind: KindIMU, Read: func() (Measurement, error) {
		return Measurement{AccelX: 1, AccelY: -2, AccelZ: 1000}, nil
	}}
	require.NoError(t, s.Sample(sensor))
	require.NoError(t, s.Sample(sensor))

	m := <-q.C()
	assert.Equal(t, KindIMU, m.Kind)
	assert.Equal(t, stamp, m.Time)
	assert.Equal(t, 1, q.Dropped())
	cached, ok := c.Get(KindIMU)
	require.True(t, ok)
	assert.Equal(t, "Acc [mg]: 1.00 -2.00 1000.00", cached.String())

	failing := SensorFunc{SensorKind: KindEnv, Read: func() (Measurement, error) {
		return Measurement{}, errors.New("i2c timeout")
	}}
	assert.Error(t, s.Sample(failing))
	_, ok = c.Get(KindEnv)
	assert.False(t, ok)
}

func TestMeasurementString(t *testing.T) {
	assert.Equal(t, "AirFlow: 1.25 m/s", airReading(1.25).String())
	assert.Equal(t, "T: 21.50 H: 40.00 P: 1013.25",
		Measurement{Kind: KindEnv, Temperature: 21.5, Humidity: 40, Pressure: 1013.25}.String())
	assert.Equal(t, "Environmental_Data", KindEnv.Topic())
}
