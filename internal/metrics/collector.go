// Package metrics collects per-iteration telemetry of an optimization run.
package metrics

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one sample of a series
type Point struct {
	Iteration int     `json:"iteration"`
	Value     float64 `json:"value"`
}

// Aggregation holds summary statistics of a series
type Aggregation struct {
	Count  int64   `json:"count"`
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summary is the run-level view exposed to clients
type Summary struct {
	StartTime      time.Time               `json:"start_time"`
	EndTime        time.Time               `json:"end_time,omitempty"`
	Duration       time.Duration           `json:"duration"`
	Iterations     int                     `json:"iterations"`
	Accepted       int                     `json:"accepted"`
	HardRejections int                     `json:"hard_rejections"`
	AcceptanceRate float64                 `json:"acceptance_rate"`
	Aggregations   map[string]*Aggregation `json:"aggregations"`
}

// Collector collects iteration-indexed series during a run
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	iterations     int
	accepted       int
	hardRejections int

	// metric name -> points in iteration order
	series map[string][]Point

	// invalidated on every Record
	aggregations map[string]*Aggregation
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		series:       make(map[string][]Point),
		aggregations: make(map[string]*Aggregation),
	}
}

// Start marks the start of collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Record appends a value to the named series
func (c *Collector) Record(name string, iteration int, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordUnsafe(name, iteration, value)
}

func (c *Collector) recordUnsafe(name string, iteration int, value float64) {
	c.series[name] = append(c.series[name], Point{Iteration: iteration, Value: value})
	delete(c.aggregations, name)
}

// Series returns a copy of the named series
func (c *Collector) Series(name string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	points := c.series[name]
	if points == nil {
		return nil
	}
	return append([]Point(nil), points...)
}

// Aggregation computes statistics for a series, nil when empty
func (c *Collector) Aggregation(name string) *Aggregation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregationUnsafe(name)
}

func (c *Collector) aggregationUnsafe(name string) *Aggregation {
	if agg, ok := c.aggregations[name]; ok {
		return agg
	}
	agg := calculateAggregation(c.series[name])
	if agg != nil {
		c.aggregations[name] = agg
	}
	return agg
}

// Summary returns aggregates of every series and the acceptance rate
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	summary := &Summary{
		StartTime:      c.startTime,
		EndTime:        c.endTime,
		Duration:       end.Sub(c.startTime),
		Iterations:     c.iterations,
		Accepted:       c.accepted,
		HardRejections: c.hardRejections,
		Aggregations:   make(map[string]*Aggregation, len(c.series)),
	}
	if c.iterations > 0 {
		summary.AcceptanceRate = float64(c.accepted) / float64(c.iterations)
	}
	for name := range c.series {
		if agg := c.aggregationUnsafe(name); agg != nil {
			summary.Aggregations[name] = agg
		}
	}
	return summary
}

// Names returns the recorded series names, sorted
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops all collected data
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[string][]Point)
	c.aggregations = make(map[string]*Aggregation)
	c.iterations, c.accepted, c.hardRejections = 0, 0, 0
	c.startTime = time.Now()
	c.endTime = time.Time{}
}

func calculateAggregation(points []Point) *Aggregation {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sort.Float64s(values)

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return &Aggregation{
		Count:  int64(len(values)),
		Sum:    floats.Sum(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		Mean:   mean,
		StdDev: std,
		P50:    stat.Quantile(0.50, stat.Empirical, values, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, values, nil),
	}
}
