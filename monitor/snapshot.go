package monitor

import (
	"time"

	"github.com/temoto/linescope/device"
	"github.com/temoto/linescope/series"
)

// Snapshot owns all its data, safe to keep and read while monitor goes on.
type Snapshot struct {
	Points       []series.Point `json:"points"`
	Rate         float64        `json:"rate_hz"`
	HasRate      bool           `json:"has_rate"`
	MeanInterval time.Duration  `json:"mean_interval_ns"`
	HasInterval  bool           `json:"has_interval"`
	Log          []string       `json:"log"`
	Alert        bool           `json:"alert"`
	Mode         device.Mode    `json:"mode"`
	Aggregate    float64        `json:"aggregate"`
	HasAggregate bool           `json:"has_aggregate"`
	SamplingHz   float64        `json:"sampling_hz"`
	Components   []Component    `json:"components"`
	Spectrum     []float64      `json:"spectrum,omitempty"`
	Malformed    uint64         `json:"malformed"`
	Epoch        uint64         `json:"epoch"`
}

func (self *Monitor) Snapshot() Snapshot {
	self.mu.Lock()
	defer self.mu.Unlock()

	s := Snapshot{
		Points:       self.series.Points(),
		Log:          self.tracker.Lines(),
		Alert:        self.tracker.Alert(),
		Mode:         self.tracker.Mode(),
		Aggregate:    self.aggregate,
		HasAggregate: self.hasAggregate,
		SamplingHz:   self.samplingHz,
		Components:   self.components.Slice(),
		Malformed:    self.tracker.Malformed(),
		Epoch:        self.series.Epoch(),
	}
	s.Rate, s.HasRate = self.series.Rate()
	s.MeanInterval, s.HasInterval = self.series.MeanInterval()
	if self.spectrum != nil {
		s.Spectrum = append([]float64(nil), self.spectrum...)
	}
	return s
}

func (s *Snapshot) Latest() (series.Point, bool) {
	if len(s.Points) == 0 {
		return series.Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Extent returns min and max value of points.
func (s *Snapshot) Extent() (min, max float64, ok bool) {
	if len(s.Points) == 0 {
		return 0, 0, false
	}
	min, max = s.Points[0].Value, s.Points[0].Value
	for _, p := range s.Points[1:] {
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	return min, max, true
}
