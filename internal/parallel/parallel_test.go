package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		n    int
	}{
		{"parallel", Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}, 1000},
		{"uneven chunks", Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}, 10},
		{"sequential", Sequential(), 100},
		{"below chunk size", DefaultConfig(), DefaultConfig().MinChunkSize - 1},
		{"empty", DefaultConfig(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			For(tt.n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			}, tt.cfg)

			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func TestRangeChunks(t *testing.T) {
	var (
		mu     sync.Mutex
		chunks [][2]int
	)
	Range(10, func(start, end int) {
		mu.Lock()
		chunks = append(chunks, [2]int{start, end})
		mu.Unlock()
	}, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 4})

	covered := 0
	for _, c := range chunks {
		assert.Less(t, c[0], c[1])
		assert.LessOrEqual(t, c[1]-c[0], 4)
		covered += c[1] - c[0]
	}
	assert.Equal(t, 10, covered)
	assert.Len(t, chunks, 3)
}

func TestRangeInlineWhenDisabled(t *testing.T) {
	calls := 0
	Range(500, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 500, end)
	}, Sequential())
	assert.Equal(t, 1, calls)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential())
		}
	})
}
