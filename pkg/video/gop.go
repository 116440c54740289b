package video

import (
	"bytes"
	"slices"
)

// H264 NAL unit types the decoder needs.
const (
	nalSlice = 1
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
)

// maxGOPBytes bounds the buffered group of pictures. Past it the buffer is
// dropped until the next keyframe.
const maxGOPBytes = 8 << 20

var startCode = []byte{0, 0, 0, 1}

// gopBuffer keeps what ffmpeg needs to decode the newest picture: the last
// parameter sets and every slice since the last keyframe.
type gopBuffer struct {
	sps, pps []byte
	pics     bytes.Buffer
	pending  bool
}

// push adds an Annex-B chunk as produced by the RTP depacketizer.
func (g *gopBuffer) push(annexB []byte) {
	for _, nal := range splitNALs(annexB) {
		switch nal[0] & 0x1F {
		case nalSPS:
			g.sps = slices.Clone(nal)
		case nalPPS:
			g.pps = slices.Clone(nal)
		case nalIDR:
			// first_mb_in_slice == 0 opens a new picture.
			if len(nal) > 1 && nal[1]&0x80 != 0 {
				g.pics.Reset()
			}
			g.add(nal)
		case nalSlice:
			if g.pics.Len() > 0 {
				g.add(nal)
			}
		}
	}
}

func (g *gopBuffer) add(nal []byte) {
	if g.pics.Len()+len(nal) > maxGOPBytes {
		g.pics.Reset()
		return
	}
	g.pics.Write(startCode)
	g.pics.Write(nal)
	g.pending = true
}

// batch returns a self-contained Annex-B stream ending at the newest slice,
// or nil when nothing arrived since the last batch or no keyframe and
// parameter sets have been seen yet.
func (g *gopBuffer) batch() []byte {
	if !g.pending || g.sps == nil || g.pps == nil || g.pics.Len() == 0 {
		return nil
	}
	g.pending = false

	out := make([]byte, 0, 2*len(startCode)+len(g.sps)+len(g.pps)+g.pics.Len())
	out = append(out, startCode...)
	out = append(out, g.sps...)
	out = append(out, startCode...)
	out = append(out, g.pps...)
	return append(out, g.pics.Bytes()...)
}

// splitNALs returns the NAL units of an Annex-B stream without start codes.
func splitNALs(b []byte) [][]byte {
	var (
		nals  [][]byte
		start = -1
	)
	for i := 0; i+2 < len(b); {
		if b[i] != 0 || b[i+1] != 0 || b[i+2] != 1 {
			i++
			continue
		}
		if start >= 0 {
			if nal := bytes.TrimRight(b[start:i], "\x00"); len(nal) > 0 {
				nals = append(nals, nal)
			}
		}
		i += 3
		start = i
	}
	if start >= 0 && start < len(b) {
		nals = append(nals, b[start:])
	}
	return nals
}
