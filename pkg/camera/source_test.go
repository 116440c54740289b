package camera

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeCapture struct {
	device any
	frames int
	closed int
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	if f.frames == 0 {
		return false
	}
	f.frames--
	return true
}

func (f *fakeCapture) Close() error {
	f.closed++
	return nil
}

// fakeOpener fails for every device listed in failing and records every attempt.
type fakeOpener struct {
	failing  map[any]bool
	attempts []any
	opened   []*fakeCapture
}

func (o *fakeOpener) open(device any) (Capture, error) {
	o.attempts = append(o.attempts, device)
	if o.failing[device] {
		return nil, errors.New("cannot open")
	}
	c := &fakeCapture{device: device, frames: 2}
	o.opened = append(o.opened, c)
	return c, nil
}

func TestOpen_Primary(t *testing.T) {
	cfg := DefaultConfig()
	o := &fakeOpener{}

	src, err := Open(cfg, o.open)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []any{cfg.StreamURL}, o.attempts)
	assert.False(t, src.UsedFallback())
	assert.Equal(t, cfg.StreamURL, src.Name())
}

func TestOpen_FallsBackToLocalDevice(t *testing.T) {
	cfg := DefaultConfig()
	o := &fakeOpener{failing: map[any]bool{cfg.StreamURL: true}}

	src, err := Open(cfg, o.open)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []any{cfg.StreamURL, 0}, o.attempts)
	assert.True(t, src.UsedFallback())
	assert.Equal(t, "device:0", src.Name())
}

func TestOpen_NoSource(t *testing.T) {
	cfg := DefaultConfig()
	o := &fakeOpener{failing: map[any]bool{cfg.StreamURL: true, 0: true}}

	src, err := Open(cfg, o.open)
	assert.Nil(t, src)
	require.ErrorIs(t, err, ErrNoSource)
	assert.Len(t, o.attempts, 2, "fallback must be attempted")
	assert.Empty(t, o.opened, "nothing may be left open")
}

func TestOpen_EmptyStreamURLUsesFallbackOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StreamURL = ""
	cfg.FallbackDevice = 1
	o := &fakeOpener{}

	src, err := Open(cfg, o.open)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []any{1}, o.attempts)
}

func TestSource_ReadAndClose(t *testing.T) {
	o := &fakeOpener{}
	src, err := Open(DefaultConfig(), o.open)
	require.NoError(t, err)

	mat := gocv.NewMat()
	defer mat.Close()

	assert.True(t, src.Read(&mat))
	assert.True(t, src.Read(&mat))
	assert.False(t, src.Read(&mat), "end of stream")

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, o.opened[0].closed, "close is idempotent")
	assert.False(t, src.Read(&mat), "closed source yields nothing")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"too narrow", func(c *Config) { c.DisplayWidth = 10 }, true},
		{"too tall", func(c *Config) { c.DisplayHeight = 5000 }, true},
		{"negative device", func(c *Config) { c.FallbackDevice = -1 }, true},
		{"negative buffer", func(c *Config) { c.BufferSize = -1 }, true},
		{"no buffer hint", func(c *Config) { c.BufferSize = 0 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			errs := cfg.Validate()
			if tc.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestDefaultOpener_UnreachableHTTPStream(t *testing.T) {
	open := DefaultOpener(DefaultConfig())

	c, err := open("http://127.0.0.1:1/video")
	assert.Nil(t, c)
	assert.Error(t, err, "probe fails before OpenCV is asked")
}
