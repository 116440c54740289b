package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Address
		wantErr bool
	}{
		{
			name: "host with port and producer",
			in:   "webrtc://192.168.1.20:8443/shelfcam",
			want: Address{Signalling: "ws://192.168.1.20:8443", Producer: "shelfcam"},
		},
		{
			name: "default port",
			in:   "webrtc://camera.local",
			want: Address{Signalling: "ws://camera.local:8443"},
		},
		{
			name: "trailing slash",
			in:   "webrtc://camera.local:9000/",
			want: Address{Signalling: "ws://camera.local:9000"},
		},
		{name: "wrong scheme", in: "http://camera.local/video", wantErr: true},
		{name: "no host", in: "webrtc:///shelfcam", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAddress(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelectProducer(t *testing.T) {
	producers := []producer{
		{ID: "a1", Meta: map[string]string{"name": "doorcam"}},
		{ID: "b2", Meta: map[string]string{"name": "shelfcam"}},
	}

	id, ok := selectProducer(producers, "shelfcam")
	assert.True(t, ok)
	assert.Equal(t, "b2", id)

	id, ok = selectProducer(producers, "")
	assert.True(t, ok)
	assert.Equal(t, "a1", id, "empty name joins the first producer")

	_, ok = selectProducer(producers, "missing")
	assert.False(t, ok)

	_, ok = selectProducer(nil, "")
	assert.False(t, ok)
}

func TestDecoder_SkipsShortBatches(t *testing.T) {
	d := &decoder{binary: "/nonexistent/ffmpeg", timeout: ffmpegTimeout}

	jpeg, err := d.decode([]byte{0, 0, 0, 1, 0x65})
	assert.NoError(t, err)
	assert.Nil(t, jpeg)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := NewClient(Address{Signalling: "ws://127.0.0.1:1"})
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.True(t, c.isClosed())
	assert.False(t, c.Read(nil), "unconnected client yields no frames")
}
