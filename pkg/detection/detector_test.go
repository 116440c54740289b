package detection

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewRegion_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		polygon []image.Point
		want    image.Rectangle
	}{
		{
			name:    "axis aligned",
			polygon: []image.Point{{10, 20}, {60, 20}, {60, 70}, {10, 70}},
			want:    image.Rect(10, 20, 60, 70),
		},
		{
			name:    "rotated",
			polygon: []image.Point{{50, 10}, {90, 50}, {50, 90}, {10, 50}},
			want:    image.Rect(10, 10, 90, 90),
		},
		{
			name: "empty",
			want: image.Rectangle{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegion("111", tc.polygon)
			assert.Equal(t, tc.want, r.Rect)
			assert.Equal(t, "111", r.Text)
		})
	}
}

func TestPolygonsFrom(t *testing.T) {
	coords := []float32{
		10, 20, 60.4, 20, 60, 70.6, 10, 70,
		100, 100, 150, 100, 150, 150, 100, 150,
		1, 2, // trailing partial code is ignored
	}

	polys := polygonsFrom(coords)
	require.Len(t, polys, 2)
	assert.Equal(t, []image.Point{{10, 20}, {60, 20}, {60, 71}, {10, 70}}, polys[0])
	assert.Equal(t, image.Pt(150, 150), polys[1][2])

	assert.Empty(t, polygonsFrom(nil))
}

func TestRegionsFrom_DropsUndecoded(t *testing.T) {
	polys := polygonsFrom([]float32{
		0, 0, 10, 0, 10, 10, 0, 10,
		20, 20, 30, 20, 30, 30, 20, 30,
		40, 40, 50, 40, 50, 50, 40, 50,
	})

	regions := regionsFrom([]string{"111", "", "222"}, polys)
	require.Len(t, regions, 2)
	assert.Equal(t, "111", regions[0].Text)
	assert.Equal(t, "222", regions[1].Text)
	assert.Equal(t, image.Rect(40, 40, 50, 50), regions[1].Rect)
}

func TestMock(t *testing.T) {
	first := []Region{NewRegion("111", nil)}
	m := NewMock(first, nil)
	m.Errs = []error{nil, errors.New("blurred")}

	frame := gocv.NewMat()
	defer frame.Close()

	got, err := m.Detect(frame)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	_, err = m.Detect(frame)
	assert.Error(t, err)

	got, err = m.Detect(frame)
	assert.NoError(t, err)
	assert.Nil(t, got, "exhausted mock detects nothing")

	assert.Equal(t, 3, m.Calls())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestQRDetector_EmptyFrame(t *testing.T) {
	d := NewQR()
	defer d.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	_, err := d.Detect(frame)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestQRDetector_BlankFrame(t *testing.T) {
	d := NewQR()
	defer d.Close()

	frame := gocv.NewMatWithSize(600, 900, gocv.MatTypeCV8UC3)
	defer frame.Close()

	regions, err := d.Detect(frame)
	assert.NoError(t, err)
	assert.Empty(t, regions)
}
