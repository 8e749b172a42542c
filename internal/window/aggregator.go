package window

import "fmt"

// Stats is the summary of one ring at report time.
type Stats struct {
	Avg int64
	Min int64
	Max int64
}

// Series holds the per-column stats of one stage.
type Series struct {
	Stage   string
	Columns []string
	Stats   []Stats
}

// Column returns the stats for the named column.
func (s Series) Column(name string) (Stats, bool) {
	for i, c := range s.Columns {
		if c == name {
			return s.Stats[i], true
		}
	}
	return Stats{}, false
}

// Report is produced by Commit at every window boundary.
type Report struct {
	Size    int
	Samples uint64
	Series  []Series
	// Call is set when call latency is tracked.
	Call *Stats
}

// Config describes the shape of an Aggregator.
type Config struct {
	// Size is N, the number of slots per ring.
	Size int
	// Stages are reported in order.
	Stages []string
	// Columns are the values recorded per stage sample.
	Columns []string
	// TrackCalls adds a stage-independent ring for send() call latency.
	TrackCalls bool
}

// Aggregator owns the rings of one transport instance.
type Aggregator struct {
	cfg   Config
	rings [][]*Ring
	call  *Ring
	index uint64
}

// New allocates every ring up front. Nothing grows afterwards.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.Size)
	}
	if len(cfg.Stages) == 0 || len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("window needs at least one stage and one column")
	}

	rings := make([][]*Ring, len(cfg.Stages))
	for s := range rings {
		rings[s] = make([]*Ring, len(cfg.Columns))
		for c := range rings[s] {
			rings[s][c] = NewRing(cfg.Size)
		}
	}

	a := &Aggregator{cfg: cfg, rings: rings}
	if cfg.TrackCalls {
		a.call = NewRing(cfg.Size)
	}
	return a, nil
}

// Size returns N.
func (a *Aggregator) Size() int {
	return a.cfg.Size
}

// Index returns the number of committed samples.
func (a *Aggregator) Index() uint64 {
	return a.index
}

// Record stores one value per column for stage at the current index.
func (a *Aggregator) Record(stage int, values ...int64) error {
	if stage < 0 || stage >= len(a.rings) {
		return fmt.Errorf("stage %d out of range [0, %d)", stage, len(a.rings))
	}
	if len(values) != len(a.cfg.Columns) {
		return fmt.Errorf("got %d values for %d columns", len(values), len(a.cfg.Columns))
	}
	for c, v := range values {
		a.rings[stage][c].Put(a.index, v)
	}
	return nil
}

// RecordCall stores the send() call latency at the current index.
// It is a no-op when TrackCalls is off.
func (a *Aggregator) RecordCall(delta int64) {
	if a.call != nil {
		a.call.Put(a.index, delta)
	}
}

// Commit closes the current sample. It returns a report when the new index is a
// multiple of the window size, nil otherwise.
func (a *Aggregator) Commit() *Report {
	a.index++
	if a.index%uint64(a.cfg.Size) != 0 {
		return nil
	}
	return a.report()
}

func (a *Aggregator) report() *Report {
	r := &Report{
		Size:    a.cfg.Size,
		Samples: a.index,
		Series:  make([]Series, len(a.cfg.Stages)),
	}
	for s, name := range a.cfg.Stages {
		stats := make([]Stats, len(a.cfg.Columns))
		for c := range a.cfg.Columns {
			stats[c] = a.rings[s][c].Stats()
		}
		r.Series[s] = Series{Stage: name, Columns: a.cfg.Columns, Stats: stats}
	}
	if a.call != nil {
		st := a.call.Stats()
		r.Call = &st
	}
	return r
}
