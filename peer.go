package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/tomaslejdung/goview/pkg/viewctl"
)

// ICE servers for NAT traversal
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

// StreamStats is a per-track receive counter snapshot.
type StreamStats struct {
	TrackID string
	Width   uint32
	Height  uint32
	Frames  uint64
	Bytes   uint64
}

type trackSize struct {
	width  uint32
	height uint32
}

// Viewer is the receive side of one WebRTC session: a fixed set of recvonly
// video transceivers plus the per-view data channels the server opens. The
// server is the offerer; we answer.
type Viewer struct {
	pc *webrtc.PeerConnection

	onSample    func(*viewctl.Sample)
	onChannel   func(viewctl.DataChannel)
	onCandidate func(candidate string, sdpMLineIndex uint16)

	mu    sync.Mutex
	sizes map[string]trackSize
	stats map[string]*StreamStats
}

// dataChannel adapts a pion data channel to the control layer's interface.
type dataChannel struct {
	dc *webrtc.DataChannel
}

func (d *dataChannel) Label() string { return d.dc.Label() }

func (d *dataChannel) IsOpen() bool {
	return d.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (d *dataChannel) SendText(text string) error {
	return d.dc.SendText(text)
}

// NewViewer creates the peer connection with views recvonly video slots.
// The callbacks run on pion goroutines; they must be safe to call from any
// goroutine.
func NewViewer(
	views int,
	onSample func(*viewctl.Sample),
	onChannel func(viewctl.DataChannel),
	onCandidate func(candidate string, sdpMLineIndex uint16),
) (*Viewer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: defaultICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	v := &Viewer{
		pc:          pc,
		onSample:    onSample,
		onChannel:   onChannel,
		onCandidate: onCandidate,
		sizes:       make(map[string]trackSize),
		stats:       make(map[string]*StreamStats),
	}

	for i := 0; i < views; i++ {
		_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add video transceiver %d: %w", i, err)
		}
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil || v.onCandidate == nil {
			return
		}
		init := candidate.ToJSON()
		var mline uint16
		if init.SDPMLineIndex != nil {
			mline = *init.SDPMLineIndex
		}
		v.onCandidate(init.Candidate, mline)
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Printf("Data channel %q announced", dc.Label())
		wrapped := &dataChannel{dc: dc}
		dc.OnOpen(func() {
			log.Printf("Data channel %q open", dc.Label())
		})
		v.onChannel(wrapped)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Printf("Track %q started (%s)", track.ID(), track.Codec().MimeType)
		go v.readTrack(track)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("ICE connection state: %s", state)
	})

	return v, nil
}

// viewIndexForTrack maps a track ID like "video2" to its view slot.
func viewIndexForTrack(trackID string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(trackID, "video"))
	if err != nil {
		return 0, fmt.Errorf("unexpected track id %q", trackID)
	}
	return idx, nil
}

// readTrack assembles RTP payloads into frames on the marker bit and hands
// them to the sample callback. Frames that arrive before the track's size
// announcement are dropped; that only happens during startup and resize.
func (v *Viewer) readTrack(track *webrtc.TrackRemote) {
	viewID, err := viewIndexForTrack(track.ID())
	if err != nil {
		log.Printf("Ignoring track: %v", err)
		return
	}

	var (
		frame []byte
		ts    uint32
	)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("Track %q read error: %v", track.ID(), err)
			}
			return
		}
		// A timestamp change before the marker means the tail of the
		// previous frame was lost. Drop it rather than emit a torn frame.
		if len(frame) > 0 && pkt.Timestamp != ts {
			frame = frame[:0]
		}
		ts = pkt.Timestamp
		frame = append(frame, pkt.Payload...)
		if !pkt.Marker {
			continue
		}
		v.finishFrame(track.ID(), viewID, frame)
		frame = nil
	}
}

func (v *Viewer) finishFrame(trackID string, viewID int, frame []byte) {
	v.mu.Lock()
	size, sized := v.sizes[trackID]
	st := v.stats[trackID]
	if st == nil {
		st = &StreamStats{TrackID: trackID}
		v.stats[trackID] = st
	}
	st.Frames++
	st.Bytes += uint64(len(frame))
	st.Width = size.width
	st.Height = size.height
	v.mu.Unlock()

	if !sized {
		return
	}
	v.onSample(&viewctl.Sample{
		ViewID:     viewID,
		Width:      size.width,
		Height:     size.height,
		Data:       frame,
		ReceivedAt: time.Now(),
	})
}

// SetTrackSize records the encoded size the server announced for a track.
func (v *Viewer) SetTrackSize(trackID string, width, height uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sizes[trackID] = trackSize{width: width, height: height}
}

// HandleOffer applies the server's offer and produces the local answer. The
// answer carries all gathered ICE candidates; blocks until gathering is
// complete.
func (v *Viewer) HandleOffer(sdp string) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}
	if err := v.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := v.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(v.pc)
	if err := v.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(5 * time.Second):
		log.Printf("ICE gathering timed out, answering with partial candidates")
	}

	return v.pc.LocalDescription().SDP, nil
}

// AddCandidate adds a remote ICE candidate.
func (v *Viewer) AddCandidate(candidate string, sdpMLineIndex uint16) error {
	mline := sdpMLineIndex
	return v.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidate,
		SDPMLineIndex: &mline,
	})
}

// Stats returns a copy of the per-track receive counters, ordered by track
// ID.
func (v *Viewer) Stats() []StreamStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]StreamStats, 0, len(v.stats))
	for _, st := range v.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// Close shuts the peer connection down.
func (v *Viewer) Close() {
	if err := v.pc.Close(); err != nil {
		log.Printf("Failed to close peer connection: %v", err)
	}
}
