package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenormalize_FullRange(t *testing.T) {
	for _, dimension := range []int{1080, 2400} {
		for n := 0; n <= MaxNormalized; n++ {
			got := Denormalize(n, dimension)
			assert.Equal(t, n*dimension/1000, got, "n=%d dimension=%d", n, dimension)
			if got < 0 || got >= dimension {
				t.Fatalf("Denormalize(%d, %d) = %d, outside [0, %d)", n, dimension, got, dimension)
			}
		}
	}
}

func TestDenormalize_Monotonic(t *testing.T) {
	prev := Denormalize(0, 1080)
	for n := 1; n <= MaxNormalized; n++ {
		cur := Denormalize(n, 1080)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestDenormalize_ClampsOutOfContractInput(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		dimension int
		want      int
	}{
		{"negative", -50, 1080, 0},
		{"exactly grid size", 1000, 1080, 1078},
		{"far overflow", 123456, 2400, 2397},
		{"zero dimension", 500, 0, 0},
		{"negative dimension", 500, -10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Denormalize(tt.n, tt.dimension))
		})
	}
}

func TestDenormalizePoint(t *testing.T) {
	assert.Equal(t, Point{X: 540, Y: 1200}, DenormalizePoint(500, 500, 1080, 2400))
	assert.Equal(t, Point{X: 0, Y: 0}, DenormalizePoint(0, 0, 1080, 2400))
	assert.Equal(t, Point{X: 1078, Y: 2397}, DenormalizePoint(999, 999, 1080, 2400))
}

func TestCenter(t *testing.T) {
	assert.Equal(t, Point{X: 540, Y: 1200}, Center(1080, 2400))
}
