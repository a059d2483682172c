package station

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task samples one sensor periodically.
type Task struct {
	Sensor Sensor
	Period time.Duration
}

// Sampler runs the sensor tasks, feeding the publish queue and the console
// cache.
type Sampler struct {
	Tasks []Task
	Queue *Queue
	Cache *Cache

	now func() time.Time
}

// NewSampler creates a sampler for tasks.
func NewSampler(queue *Queue, cache *Cache, tasks ...Task) *Sampler {
	return &Sampler{Tasks: tasks, Queue: queue, Cache: cache, now: time.Now}
}

// Sample reads s once and distributes the reading.
func (s *Sampler) Sample(sensor Sensor) error {
	m, err := sensor.ReadValue()
	if err != nil {
		return err
	}
	if m.Time.IsZero() {
		m.Time = s.now()
	}
	if s.Cache != nil {
		s.Cache.Put(m)
	}
	if s.Queue != nil && !s.Queue.Offer(m) {
		log.Debugf("publish queue full, dropped %v reading", m.Kind)
	}
	return nil
}

// Run starts one goroutine per task and blocks until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.Tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.runTask(ctx, task)
		}(task)
	}
	wg.Wait()
}

func (s *Sampler) runTask(ctx context.Context, task Task) {
	period := task.Period
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		if err := s.Sample(task.Sensor); err != nil {
			log.Warnf("%v sensor read failed: %v", task.Sensor.Kind(), err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
