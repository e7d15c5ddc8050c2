package geo

import (
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	tests := []struct {
		name    string
		points  []geom.XY
		wantErr bool
	}{
		{"empty", nil, true},
		{"single point", []geom.XY{{X: 1, Y: 2}}, true},
		{"two points", []geom.XY{{X: 0, Y: 0}, {X: 3, Y: 4}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Path(tt.points)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrTooFewPoints)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPathLength(t *testing.T) {
	// 3-4-5 triangle legs walked in sequence
	points := []geom.XY{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}}
	assert.InDelta(t, 7.0, PathLength(points), 1e-9)

	assert.Equal(t, 0.0, PathLength(nil))
	assert.Equal(t, 0.0, PathLength([]geom.XY{{X: 5, Y: 5}}))
}

func TestMaxStep(t *testing.T) {
	points := []geom.XY{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 31, Y: 0}, {X: 32, Y: 0}}
	assert.InDelta(t, 30.0, MaxStep(points), 1e-9)

	assert.Equal(t, 0.0, MaxStep(nil))
	assert.Equal(t, 0.0, MaxStep([]geom.XY{{X: 1, Y: 1}}))
}

func TestBounds(t *testing.T) {
	points := []geom.XY{{X: 5, Y: -2}, {X: -1, Y: 7}, {X: 3, Y: 0}}
	min, max := Bounds(points)
	assert.Equal(t, geom.XY{X: -1, Y: -2}, min)
	assert.Equal(t, geom.XY{X: 5, Y: 7}, max)

	min, max = Bounds(nil)
	assert.Equal(t, geom.XY{}, min)
	assert.Equal(t, geom.XY{}, max)
}
