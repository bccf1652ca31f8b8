package viewctl

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
)

// DataChannel is the low-latency per-view channel render state messages are
// sent on. Implemented by the WebRTC data channel wrapper in the host
// application and by fakes in tests.
type DataChannel interface {
	Label() string
	IsOpen() bool
	SendText(text string) error
}

// Sample is one decoded frame delivered by the media pipeline, tagged with
// the view slot it belongs to.
type Sample struct {
	ViewID     int
	Width      uint32
	Height     uint32
	Data       []byte
	ReceivedAt time.Time
}

// RenderState is the wire message pushed over a view's data channel
// whenever any of its panes changed.
type RenderState struct {
	Panes     []PaneState        `json:"panes"`
	Layout    message.LayoutRect `json:"layout"`
	Seq       uint64             `json:"seq"`
	Timestamp float32            `json:"timestamp"`
	Snapshot  bool               `json:"snapshot"`
	Bitrate   float32            `json:"bitrate"`
	Scaling   float32            `json:"scaling"`
}

// DataMessage is the envelope for data channel traffic.
type DataMessage struct {
	NewState *RenderState `json:"newstate,omitempty"`
	EOF      *uint64      `json:"eof,omitempty"`
}

const bitrateScaleStep = 0.1

// sampleAreaTolerance is how far a frame's pixel area may deviate from the
// expected (scaled) viewport area before it is dropped. Filters stretched
// frames that arrive while a resize renegotiation is in flight.
const sampleAreaTolerance = 0.1

// ViewConfig carries the quality settings a view is created with.
type ViewConfig struct {
	BitrateScale float32
	GPU          bool
	Preset       string
	Lossless     bool
	VideoScaling float32
	FullRange    bool
	Schedule     schedule.Schedule
}

// View binds one logical remote stream slot to a rectangle tiled into
// panes. Views are created once at startup and reused across case and
// protocol changes.
type View struct {
	videoID int
	dataID  string

	gpu          bool
	preset       string
	lossless     bool
	videoScaling float32
	fullRange    bool
	bitrateScale float32

	dirty   bool
	layout  message.LayoutRect
	sample  *Sample
	channel DataChannel
	panes   []*Pane
	focus   int
	seq     uint64
	started time.Time
	sched   schedule.Schedule
}

// NewView creates a view for stream slot videoID. The data channel label
// the remote peer must use is derived from the slot index.
func NewView(videoID int, layout message.LayoutRect, cfg ViewConfig) *View {
	return &View{
		videoID:      videoID,
		dataID:       fmt.Sprintf("video%d-data", videoID),
		gpu:          cfg.GPU,
		preset:       cfg.Preset,
		lossless:     cfg.Lossless,
		videoScaling: cfg.VideoScaling,
		fullRange:    cfg.FullRange,
		bitrateScale: cfg.BitrateScale,
		layout:       layout,
		panes:        []*Pane{NewPane()},
		focus:        -1,
		started:      time.Now(),
		sched:        cfg.Schedule,
	}
}

// VideoID returns the stream slot index.
func (v *View) VideoID() int {
	return v.videoID
}

// DataID returns the data channel label this view accepts.
func (v *View) DataID() string {
	return v.dataID
}

// SetDataChannel binds the channel if its label matches and none is bound
// yet. All panes are invalidated so the peer gets a full resync message.
func (v *View) SetDataChannel(channel DataChannel) bool {
	if v.channel != nil {
		return false
	}
	if channel.Label() != v.dataID {
		return false
	}
	v.channel = channel

	for _, pane := range v.panes {
		pane.Invalidate()
	}
	return true
}

// acceptSample checks the frame's pixel area against the expected scaled
// viewport area. Frames outside the tolerance are transient leftovers from
// before a resize and must not be displayed stretched.
func (v *View) acceptSample(sample *Sample) bool {
	area := float32(sample.Width * sample.Height)
	expected := float32(v.layout.Width*v.layout.Height) * v.videoScaling * v.videoScaling
	if expected <= 0 {
		return false
	}
	diff := 1.0 - area/expected
	if diff < 0 {
		diff = -diff
	}
	return diff < sampleAreaTolerance
}

// PushSample offers a decoded frame to the view. Accepted frames replace
// the buffered one; only the newest frame is ever kept. Rejected frames are
// dropped silently.
func (v *View) PushSample(sample *Sample) {
	if v.acceptSample(sample) {
		v.sample = sample
		v.dirty = false
	}
}

// CurrentSample returns the buffered frame, or nil.
func (v *View) CurrentSample() *Sample {
	return v.sample
}

// Layout returns the view rectangle.
func (v *View) Layout() message.LayoutRect {
	return v.layout
}

// SetLayout moves the view, re-derives the downscale factor for the new
// area, and drops the buffered frame since its resolution is stale.
func (v *View) SetLayout(layout message.LayoutRect) {
	v.layout = layout
	v.videoScaling = v.sched.Scaling(schedule.ViewportArea{
		Width:  layout.Width,
		Height: layout.Height,
	})
	v.sample = nil
	v.dirty = true
}

// Partition resizes the pane set to rows*columns and retiles them inside
// the view rectangle. Grown slots get fresh panes; shrinking drops trailing
// panes.
func (v *View) Partition(rows, columns int) {
	want := rows * columns
	for len(v.panes) < want {
		v.panes = append(v.panes, NewPane())
	}
	v.panes = v.panes[:want]

	layouts := Tile(v.layout.Width, v.layout.Height, rows, columns)
	for idx, pane := range v.panes {
		log.Printf("View %d pane %d layout %+v", v.videoID, idx, layouts[idx])
		pane.SetLayout(layouts[idx])
		pane.SetID(fmt.Sprintf("%d:%d", v.videoID, idx))
	}
}

// Panes returns the current pane set.
func (v *View) Panes() []*Pane {
	return v.panes
}

// Contains reports whether a control-local point lies inside the view.
func (v *View) Contains(x, y float64) bool {
	return v.layout.Contains(x, y)
}

// ClientConfig builds the connection request for this view's stream slot.
func (v *View) ClientConfig() message.ClientConfig {
	return message.ClientConfig{
		ID: fmt.Sprintf("NativeClient_%d", v.videoID),
		Viewport: message.ViewportSize{
			Width:  v.layout.Width,
			Height: v.layout.Height,
		},
		Bitrate:      v.Bitrate(),
		GPU:          v.gpu,
		Preset:       v.preset,
		Lossless:     v.lossless,
		VideoScaling: v.videoScaling,
		FullRange:    v.fullRange,
	}
}

func (v *View) handleFocus(x, y float64) {
	v.focus = -1
	for idx, pane := range v.panes {
		if pane.Contains(x, y) {
			v.focus = idx
			break
		}
	}
}

func (v *View) clearFocus() {
	v.focus = -1
}

// FocusedPane returns the pane under the pointer, or nil.
func (v *View) FocusedPane() *Pane {
	if v.focus < 0 {
		return nil
	}
	if v.focus >= len(v.panes) {
		panic("viewctl: focused pane index out of range")
	}
	return v.panes[v.focus]
}

// HandleEvent resolves pane focus for pointer movement, translates the
// event into view-local coordinates, and forwards it to the focused pane.
// Bitrate scale keys are handled at the view level.
func (v *View) HandleEvent(ev Event) bool {
	switch e := ev.(type) {
	case PointerMoved:
		local := PointerMoved{
			X: e.X - float64(v.layout.X),
			Y: e.Y - float64(v.layout.Y),
		}
		v.handleFocus(local.X, local.Y)
		return v.forwardEvent(local)
	case KeyPressed:
		switch e.Action {
		case KeyBitrateUp:
			v.AdjustBitrateScale(1)
			return true
		case KeyBitrateDown:
			v.AdjustBitrateScale(-1)
			return true
		}
		return v.forwardEvent(ev)
	default:
		return v.forwardEvent(ev)
	}
}

func (v *View) forwardEvent(ev Event) bool {
	pane := v.FocusedPane()
	if pane == nil {
		return false
	}
	return pane.HandleEvent(ev)
}

// HideCursor reports whether the focused pane wants the cursor hidden.
func (v *View) HideCursor() bool {
	pane := v.FocusedPane()
	if pane == nil {
		return false
	}
	return pane.HideCursor()
}

// Update runs an interaction step on every pane.
func (v *View) Update() {
	for _, pane := range v.panes {
		pane.Update()
	}
}

// UpdateSync applies a propagated sync operation to every pane.
func (v *View) UpdateSync(op ScrollSync) {
	for _, pane := range v.panes {
		pane.UpdateSync(op)
	}
}

// timestamp is the sub-second send time used for latency probes.
func (v *View) timestamp() float32 {
	return float32(time.Since(v.started).Milliseconds() % 1000)
}

// PendingState serializes a render state message when any pane is dirty.
// The per-view sequence number only advances when a message is produced, so
// the remote side sees a gap-free strictly increasing sequence. The caller
// performs the actual send so no lock is held across it.
func (v *View) PendingState() (payload string, channel DataChannel, ok bool) {
	dirty := v.dirty
	for _, pane := range v.panes {
		if pane.dirty {
			dirty = true
			break
		}
	}
	if !dirty {
		return "", nil, false
	}

	states := make([]PaneState, 0, len(v.panes))
	for _, pane := range v.panes {
		states = append(states, pane.State())
	}

	msg := DataMessage{NewState: &RenderState{
		Panes:     states,
		Layout:    v.layout,
		Seq:       v.seq,
		Timestamp: v.timestamp(),
		Bitrate:   v.Bitrate(),
		Scaling:   v.videoScaling,
	}}
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to serialize render state for view %d: %v", v.videoID, err)
		return "", nil, false
	}
	v.seq++
	return string(raw), v.channel, true
}

// SetCase binds every pane to the same case.
func (v *View) SetCase(meta *message.CaseMeta) {
	for _, pane := range v.panes {
		pane.SetCase(meta)
	}
}

// SetViewState applies the same transform to every pane.
func (v *View) SetViewState(state ViewState) {
	for _, pane := range v.panes {
		pane.SetViewState(state)
	}
}

// SetCases pulls one case per pane from next, in pane order.
func (v *View) SetCases(next func() *message.CaseMeta) {
	for _, pane := range v.panes {
		pane.SetCase(next())
	}
}

// ParkState snapshots every pane's case binding and transform.
func (v *View) ParkState() []ParkedPane {
	parked := make([]ParkedPane, 0, len(v.panes))
	for _, pane := range v.panes {
		meta, state := pane.ParkState()
		parked = append(parked, ParkedPane{Case: meta, State: state})
	}
	return parked
}

// RestoreParked reapplies a snapshot produced by ParkState.
func (v *View) RestoreParked(parked []ParkedPane) {
	for idx, pane := range v.panes {
		if idx >= len(parked) {
			break
		}
		pane.SetCase(parked[idx].Case)
		pane.SetViewState(parked[idx].State)
	}
}

// Invalidate forces the size gate to re-check the next incoming frame and
// the next push to resend state.
func (v *View) Invalidate() {
	v.dirty = true
}

// HandleTimerTick advances cine playback on every pane, running the normal
// update step for panes whose playback stepped, and collects the resulting
// sync operations.
func (v *View) HandleTimerTick() []ScrollSync {
	var ops []ScrollSync
	for _, pane := range v.panes {
		if pane.HandleTimerTick() {
			if op := pane.Update(); op != nil {
				ops = append(ops, *op)
			}
		}
	}
	return ops
}

// Bitrate returns the scheduled bitrate scaled by the user adjustment, or
// the lossless sentinel 0.
func (v *View) Bitrate() float32 {
	if v.lossless {
		return 0
	}
	return v.sched.Bitrate(schedule.ViewportArea{
		Width:  v.layout.Width,
		Height: v.layout.Height,
	}) * v.bitrateScale
}

// AdjustBitrateScale steps the bitrate multiplier, floored at 0.1.
func (v *View) AdjustBitrateScale(direction int) {
	v.bitrateScale += float32(direction) * bitrateScaleStep
	if v.bitrateScale < 0.1 {
		v.bitrateScale = 0.1
	}
	log.Printf("Bitrate scale %.1f, %dx%d -> %.2f Mbit/s",
		v.bitrateScale, v.layout.Width, v.layout.Height, v.Bitrate())
}

// ParkedPane is one pane's part of a park/restore snapshot.
type ParkedPane struct {
	Case  *message.CaseMeta
	State ViewState
}
