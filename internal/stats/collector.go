package stats

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Collector is the append-only outcome store of a single run. Record is safe for
// concurrent use; Finalize must only be called once every producer has returned.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
	report   *Report
}

func NewCollector(sizeHint int) *Collector {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Collector{outcomes: make([]Outcome, 0, sizeHint)}
}

// Record appends one outcome.
func (c *Collector) Record(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Outcomes returns a copy of everything recorded so far.
func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]Outcome, len(c.outcomes))
	copy(res, c.outcomes)
	return res
}

// Finalize reduces the collection into a Report. The report is computed on the
// first call and returned unchanged afterwards.
func (c *Collector) Finalize(log logrus.FieldLogger) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.report == nil {
		c.report = Summarize(c.outcomes, log)
	}
	return c.report
}
