package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector(0)

	const writers, perWriter = 50, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if i%10 == 0 {
					c.Record(Failed(FailureTimeout, time.Duration(i)*time.Millisecond))
					continue
				}
				c.Record(Responded(200, time.Duration(w+i)*time.Millisecond))
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, c.Len())

	log, _ := test.NewNullLogger()
	r := c.Finalize(log)
	assert.Equal(t, writers*perWriter, r.Total)
	assert.Equal(t, writers*perWriter/10, r.ErrorCount)
	assert.Equal(t, r.Total, r.ResponseCount+r.ErrorCount)
}

func TestCollectorFinalizeOnce(t *testing.T) {
	c := NewCollector(2)
	c.Record(Responded(200, time.Millisecond))

	log, _ := test.NewNullLogger()
	first := c.Finalize(log)
	second := c.Finalize(log)
	assert.Same(t, first, second)
	assert.Equal(t, 1, first.Total)
}

func TestCollectorOutcomesIsCopy(t *testing.T) {
	c := NewCollector(1)
	c.Record(Responded(204, time.Millisecond))

	got := c.Outcomes()
	got[0].StatusCode = 500

	assert.Equal(t, 204, c.Outcomes()[0].StatusCode)
}
