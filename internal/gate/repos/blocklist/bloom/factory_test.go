package bloom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactory_AddThenContain(t *testing.T) {
	f := NewFactory().New(128, 0.01)
	key := []byte("mailinator.com")
	assert.False(t, f.MightContain(key))
	f.Add(key)
	assert.True(t, f.MightContain(key))
}

func TestFactory_DegenerateArguments(t *testing.T) {
	for _, tc := range []struct {
		capacity uint64
		rate     float64
	}{{0, 0}, {1, 1}, {10, -3}} {
		f := NewFactory().New(tc.capacity, tc.rate)
		for i := 0; i < minCapacity; i++ {
			f.Add([]byte(fmt.Sprintf("d%d.example", i)))
		}
		assert.True(t, f.MightContain([]byte("d0.example")), "capacity %d rate %v", tc.capacity, tc.rate)
	}
}

func TestFactory_FalsePositiveRate(t *testing.T) {
	const n = 20_000
	f := NewFactory().New(n, 0.001)
	for i := 0; i < n; i++ {
		f.Add([]byte(fmt.Sprintf("listed-%d.example", i)))
	}
	fp := 0
	for i := 0; i < n; i++ {
		if f.MightContain([]byte(fmt.Sprintf("unlisted-%d.example", i))) {
			fp++
		}
	}
	assert.Less(t, fp, n/100, "false positives far above the target rate")
}

func TestFilter_ConcurrentReads(t *testing.T) {
	f := NewFactory().New(256, 0.01)
	keys := [][]byte{[]byte("a.com"), []byte("b.com"), []byte("c.com")}
	for _, k := range keys {
		f.Add(k)
	}
	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if !f.MightContain(keys[i%len(keys)]) {
					t.Errorf("lost %s", keys[i%len(keys)])
					return
				}
			}
		}()
	}
	wg.Wait()
}
