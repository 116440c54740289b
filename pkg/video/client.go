// Package video receives a camera feed from a GStreamer webrtcsink producer.
//
// Addresses look like webrtc://host:8443/producer-name. The client joins the
// signalling server, negotiates a receive-only H264 track and turns it into
// decoded frames readable through Read.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"gocv.io/x/gocv"

	"github.com/teslashibe/shelfscan/internal/log"
)

// Scheme prefixes addresses handled by this package.
const Scheme = "webrtc://"

const (
	defaultSignallingPort = "8443"
	decodeInterval        = 100 * time.Millisecond
	readTimeout           = 5 * time.Second
)

// ErrProducerNotFound is returned when the signalling server lists no matching producer.
var ErrProducerNotFound = errors.New("video: producer not found")

// Address is a parsed webrtc:// locator.
type Address struct {
	// Signalling is the websocket URL of the signalling server.
	Signalling string
	// Producer is the producer "name" meta to join; empty joins the first one listed.
	Producer string
}

// ParseAddress converts webrtc://host[:port][/producer] into an Address.
func ParseAddress(addr string) (Address, error) {
	if !strings.HasPrefix(addr, Scheme) {
		return Address{}, fmt.Errorf("video: %q is not a %s address", addr, Scheme)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return Address{}, fmt.Errorf("video: parse %q: %w", addr, err)
	}
	if u.Hostname() == "" {
		return Address{}, fmt.Errorf("video: %q has no host", addr)
	}
	port := u.Port()
	if port == "" {
		port = defaultSignallingPort
	}
	return Address{
		Signalling: fmt.Sprintf("ws://%s:%s", u.Hostname(), port),
		Producer:   strings.Trim(u.Path, "/"),
	}, nil
}

// Client connects to a webrtcsink producer via GStreamer signalling.
type Client struct {
	addr Address

	ws      *websocket.Conn
	wsMutex sync.Mutex
	pc      *webrtc.PeerConnection

	myPeerID   string
	producerID string
	sessionID  string

	decoder *decoder

	// decoded JPEG frames, newest wins
	frames     chan []byte
	trackReady chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	connected bool
}

// NewClient creates an unconnected client.
func NewClient(addr Address) *Client {
	return &Client{
		addr:       addr,
		decoder:    newDecoder(),
		frames:     make(chan []byte, 1),
		trackReady: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Dial parses addr, connects and waits for the first video track.
func Dial(ctx context.Context, addr string) (*Client, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	c := NewClient(a)
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Connect establishes the WebRTC session and waits for the video track.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var err error
	c.ws, _, err = dialer.DialContext(ctx, c.addr.Signalling, nil)
	if err != nil {
		return fmt.Errorf("video: signalling connect: %w", err)
	}

	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("video: welcome: %w", err)
	}
	if err := c.findProducer(); err != nil {
		return fmt.Errorf("video: find producer: %w", err)
	}
	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("video: peer connection: %w", err)
	}
	if err := c.startSession(); err != nil {
		return fmt.Errorf("video: start session: %w", err)
	}

	go c.handleSignalling()

	select {
	case <-c.trackReady:
	case <-ctx.Done():
		return fmt.Errorf("video: waiting for track: %w", ctx.Err())
	}

	c.connected = true
	log.Info("WebRTC video connected", "producer", c.producerID, "signalling", c.addr.Signalling)
	return nil
}

func (c *Client) waitForWelcome() error {
	c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	c.myPeerID = welcome.PeerID
	return nil
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

func (c *Client) findProducer() error {
	if err := c.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var listResp struct {
		Type      string     `json:"type"`
		Producers []producer `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return err
	}

	id, ok := selectProducer(listResp.Producers, c.addr.Producer)
	if !ok {
		return fmt.Errorf("%w: %q among %d producers", ErrProducerNotFound, c.addr.Producer, len(listResp.Producers))
	}
	c.producerID = id
	return nil
}

// selectProducer picks the producer whose name meta matches, or the first one when name is empty.
func selectProducer(producers []producer, name string) (string, bool) {
	for _, p := range producers {
		if name == "" || p.Meta["name"] == name {
			return p.ID, true
		}
	}
	return "", false
}

func (c *Client) createPeerConnection() error {
	var err error
	c.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	if _, err = c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug("WebRTC track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.handleVideoTrack(track)
		}
	})

	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("WebRTC connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			c.Close()
		}
	})

	return nil
}

func (c *Client) startSession() error {
	return c.writeJSON(map[string]string{
		"type":   "startSession",
		"peerId": c.producerID,
	})
}

func (c *Client) writeJSON(v any) error {
	c.wsMutex.Lock()
	defer c.wsMutex.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) handleSignalling() {
	for !c.isClosed() {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				log.Warn("Signalling error", "error", err.Error())
				c.Close()
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &baseMsg); err != nil {
			continue
		}

		switch baseMsg.Type {
		case "sessionStarted":
			c.sessionID = baseMsg.SessionID
		case "peer":
			c.handlePeerMessage(msg)
		case "endSession":
			c.Close()
			return
		}
	}
}

type peerMessage struct {
	SDP *struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"sdp"`
	ICE *struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	} `json:"ice"`
}

func (c *Client) handlePeerMessage(msg []byte) {
	var peer peerMessage
	if err := json.Unmarshal(msg, &peer); err != nil {
		log.Warn("Bad peer message", "error", err.Error())
		return
	}

	if peer.SDP != nil && peer.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: peer.SDP.SDP}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			log.Warn("SetRemoteDescription failed", "error", err.Error())
			return
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			log.Warn("CreateAnswer failed", "error", err.Error())
			return
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			log.Warn("SetLocalDescription failed", "error", err.Error())
			return
		}
		c.sendSDP(answer)
	}

	if peer.ICE != nil {
		if err := c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peer.ICE.Candidate,
			SDPMid:        peer.ICE.SDPMid,
			SDPMLineIndex: peer.ICE.SDPMLineIndex,
		}); err != nil {
			log.Debug("AddICECandidate failed", "error", err.Error())
		}
	}
}

func (c *Client) sendSDP(sdp webrtc.SessionDescription) {
	c.writeJSON(map[string]any{
		"type":      "peer",
		"sessionId": c.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	})
}

func (c *Client) sendICECandidate(candidate *webrtc.ICECandidate) {
	if c.sessionID == "" {
		return
	}
	cand := candidate.ToJSON()
	c.writeJSON(map[string]any{
		"type":      "peer",
		"sessionId": c.sessionID,
		"ice": map[string]any{
			"candidate":     cand.Candidate,
			"sdpMid":        cand.SDPMid,
			"sdpMLineIndex": cand.SDPMLineIndex,
		},
	})
}

func (c *Client) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.trackReady <- struct{}{}:
	default:
	}

	var (
		h264       codecs.H264Packet
		gop        gopBuffer
		lastDecode = time.Now()
		pkt        *rtp.Packet
		err        error
	)

	for !c.isClosed() {
		pkt, _, err = track.ReadRTP()
		if err != nil {
			return
		}

		nal, err := h264.Unmarshal(pkt.Payload)
		if err != nil || len(nal) == 0 {
			continue
		}
		gop.push(nal)

		if time.Since(lastDecode) < decodeInterval {
			continue
		}
		lastDecode = time.Now()

		batch := gop.batch()
		if batch == nil {
			continue
		}
		jpeg, err := c.decoder.decode(batch)
		if err != nil || jpeg == nil {
			continue
		}
		c.publish(jpeg)
	}
}

// publish replaces any unread frame with the newest one.
func (c *Client) publish(jpeg []byte) {
	select {
	case <-c.frames:
	default:
	}
	select {
	case c.frames <- jpeg:
	default:
	}
}

// Read blocks for the next decoded frame and copies it into m. Frames that
// fail to decode are skipped. It returns false once the client is closed or
// no frame arrives within readTimeout.
func (c *Client) Read(m *gocv.Mat) bool {
	if !c.connected {
		return false
	}
	timeout := time.NewTimer(readTimeout)
	defer timeout.Stop()

	for {
		select {
		case jpeg := <-c.frames:
			if c.decodeInto(jpeg, m) {
				return true
			}
		case <-c.done:
			return false
		case <-timeout.C:
			log.Warn("No WebRTC frame received", "timeout", readTimeout.String())
			return false
		}
	}
}

func (c *Client) decodeInto(jpeg []byte, m *gocv.Mat) bool {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return false
	}
	defer img.Close()
	if img.Empty() {
		return false
	}
	img.CopyTo(m)
	return true
}

// Close tears down the peer connection and signalling socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.pc != nil {
			c.pc.Close()
		}
		if c.ws != nil {
			c.ws.Close()
		}
	})
	return nil
}
