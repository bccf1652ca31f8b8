package viewctl

import (
	"log"
	"math"
	"time"
)

// Mode is the interaction mode a pane is in, derived fresh from the current
// button and modifier flags on every update.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeZoom
	ModePan
	ModeScroll
	ModeFastScroll
	ModeWindowLevel
	ModeVariate
)

func (m Mode) String() string {
	switch m {
	case ModeZoom:
		return "zoom"
	case ModePan:
		return "pan"
	case ModeScroll:
		return "scroll"
	case ModeFastScroll:
		return "fastscroll"
	case ModeWindowLevel:
		return "wl"
	case ModeVariate:
		return "variate"
	default:
		return "none"
	}
}

// Flags is the pointer button and modifier state a mode derives from.
type Flags struct {
	Left   bool
	Right  bool
	Middle bool
	Ctrl   bool
}

// DeriveMode maps a flag set and a pending wheel delta to the interaction
// mode. First match wins: left+right is fast scroll regardless of the other
// flags, then left splits into zoom (ctrl) or pan, then a pending wheel
// delta means scroll, then middle splits into variate (ctrl) or
// window/level.
func DeriveMode(f Flags, wheelPending bool) Mode {
	if f.Left {
		if f.Right {
			return ModeFastScroll
		}
		if f.Ctrl {
			return ModeZoom
		}
		return ModePan
	}
	if wheelPending {
		return ModeScroll
	}
	if f.Middle {
		if f.Ctrl {
			return ModeVariate
		}
		return ModeWindowLevel
	}
	return ModeNone
}

// ScrollSync is the side effect emitted when a synchronized pane steps its
// frame index, for propagation to sibling panes.
type ScrollSync struct {
	Origin string // id of the pane that issued the step
	Frames int
}

type point struct {
	x float64
	y float64
}

const (
	defaultCineFPS = 10.0
	cineFPSStep    = 10.0
)

// InteractionState folds a stream of pointer, key, and wheel events into an
// evolving ViewState for one pane.
type InteractionState struct {
	anchor     *point
	pointer    *point
	mouseScale float32

	scrollDelta *float32
	frameAcc    float32

	flags Flags
	mode  Mode

	imageCount int
	state      ViewState

	synchronized bool
	cine         bool
	cineMark     time.Time
	cineFPS      float32
}

// NewInteractionState returns a fresh state with a neutral transform.
func NewInteractionState() *InteractionState {
	return &InteractionState{
		mouseScale: 1.0,
		state:      NewViewState(),
		cineFPS:    defaultCineFPS,
	}
}

// SetImageCount binds the frame index range and rewinds to frame 0.
func (s *InteractionState) SetImageCount(count int) {
	s.imageCount = count
	frame := uint32(0)
	s.state.SetFrame(&frame)
}

// HandleMove records the pointer position in pane-local coordinates, along
// with the device sensitivity factor for this pane.
func (s *InteractionState) HandleMove(x, y float64, scale float32) {
	s.pointer = &point{x: x, y: y}
	s.mouseScale = scale
}

// HandleButton records a button press or release.
func (s *InteractionState) HandleButton(button Button, pressed bool) {
	switch button {
	case ButtonLeft:
		s.flags.Left = pressed
	case ButtonRight:
		s.flags.Right = pressed
	case ButtonMiddle:
		s.flags.Middle = pressed
	}
}

// HandleModifiers records the current modifier state.
func (s *InteractionState) HandleModifiers(ctrl bool) {
	s.flags.Ctrl = ctrl
}

// HandleWheel records a wheel delta. The delta is single-shot: the next
// Update consumes it whether or not scroll mode handles it.
func (s *InteractionState) HandleWheel(delta float32) {
	s.scrollDelta = &delta
}

// HideCursor reports whether the host window should hide the pointer; pan
// drags look cleaner without a visible cursor.
func (s *InteractionState) HideCursor() bool {
	return DeriveMode(s.flags, s.scrollDelta != nil) == ModePan
}

// updateFrame folds a fractional frame delta into the accumulator and steps
// the frame index once the rounded magnitude reaches one. Cine playback
// wraps around; otherwise the index clamps to [0, count-1]. Returns the
// applied step.
func (s *InteractionState) updateFrame(delta float32) int {
	s.frameAcc += delta

	abs := int(math.Round(math.Abs(float64(s.frameAcc))))
	sign := 1
	if s.frameAcc < 0 {
		sign = -1
	}
	if abs != 0 {
		s.frameAcc = 0
	}

	current := 0
	if s.state.Frame != nil {
		current = int(*s.state.Frame)
	}
	count := s.imageCount
	if count < 1 {
		count = 1
	}

	var next int
	if s.cine {
		next = ((current+sign*abs)%count + count) % count
	} else {
		next = current + sign*abs
		if next < 0 {
			next = 0
		}
		if next > count-1 {
			next = count - 1
		}
	}

	if next != current {
		frame := uint32(next)
		s.state.SetFrame(&frame)
	}
	return next - current
}

// Update derives the current mode, applies the per-mode transform for the
// movement since the last update, and reports whether the state changed.
// A non-zero frames return value is a pending scroll sync step.
func (s *InteractionState) Update() (updated bool, frames int) {
	mode := DeriveMode(s.flags, s.scrollDelta != nil)
	modeChange := false
	if mode != s.mode {
		log.Printf("Interaction mode %s -> %s", s.mode, mode)
		s.mode = mode
		// A stale anchor would apply a spurious jump on the first
		// post-switch sample.
		s.anchor = nil
		modeChange = true
	}

	anchor := s.anchor
	if anchor == nil {
		anchor = s.pointer
	}
	var movement *point
	if s.pointer != nil {
		movement = &point{x: s.pointer.x - anchor.x, y: s.pointer.y - anchor.y}
	}

	s.state.Cursor = nil
	switch s.mode {
	case ModeZoom:
		if movement != nil {
			factor := 1 - float32(movement.y)/256.0
			if factor < 0 {
				factor = 0
			}
			s.state.UpdateMagnification(factor)
			updated = true
		}
	case ModePan:
		if movement != nil {
			s.state.UpdatePosition(float32(movement.x), float32(movement.y))
			s.state.Cursor = &[2]float32{float32(s.pointer.x), float32(s.pointer.y)}
			updated = true
		}
	case ModeScroll:
		if s.scrollDelta != nil {
			if diff := s.updateFrame(-*s.scrollDelta); diff != 0 {
				updated = true
				if s.synchronized {
					frames = diff
				}
			}
		}
	case ModeFastScroll:
		if movement != nil {
			count := s.imageCount
			if count < 1 {
				count = 1
			}
			delta := float32(movement.y) * s.mouseScale * float32(count)
			if diff := s.updateFrame(delta); diff != 0 {
				updated = true
				if s.synchronized {
					frames = diff
				}
			}
		}
	case ModeWindowLevel:
		if movement != nil {
			center := 1 + float32(movement.y)/256.0
			if center < 0 {
				center = 0
			}
			width := 1 + float32(movement.x)/256.0
			if width < 0 {
				width = 0
			}
			s.state.UpdateCenter(center)
			s.state.UpdateWidth(width)
			updated = true
		}
	case ModeVariate:
		if movement != nil {
			delta := float32(movement.y) * s.mouseScale
			s.state.UpdateVariate(&delta)
			updated = true
		}
	}

	// The wheel delta is consumed exactly once per update, and the next
	// delta is always relative to the latest pointer sample.
	s.scrollDelta = nil
	s.anchor = s.pointer
	return updated || modeChange, frames
}

// RenderState returns a copy of the current transform snapshot.
func (s *InteractionState) RenderState() ViewState {
	return s.state.Clone()
}

// SetRenderState replaces the transform snapshot wholesale.
func (s *InteractionState) SetRenderState(state ViewState) {
	s.state = state.Clone()
}

// ToggleSync flips the scroll synchronization flag.
func (s *InteractionState) ToggleSync() {
	s.synchronized = !s.synchronized
}

// Synchronized reports whether this pane participates in scroll sync.
func (s *InteractionState) Synchronized() bool {
	return s.synchronized
}

// ToggleCine starts or stops timed frame auto-advance.
func (s *InteractionState) ToggleCine() {
	s.cine = !s.cine
	if s.cine {
		s.cineMark = time.Now()
	} else {
		s.cineMark = time.Time{}
	}
}

// Cine reports whether auto-advance is running.
func (s *InteractionState) Cine() bool {
	return s.cine
}

// AdjustCineSpeed steps the playback rate by one increment in the given
// direction.
func (s *InteractionState) AdjustCineSpeed(direction int) {
	s.cineFPS += float32(direction) * cineFPSStep
	log.Printf("Cine FPS now %.0f", s.cineFPS)
}

// CineUpdate converts elapsed playback time into a synthetic wheel delta
// once at least one whole frame is due. Returns true when a delta was
// injected; the caller should then run a normal Update.
func (s *InteractionState) CineUpdate() bool {
	if !s.cine || s.cineMark.IsZero() {
		return false
	}
	frames := float32(time.Since(s.cineMark).Seconds()) * s.cineFPS
	if math.Abs(float64(frames)) < 1 {
		return false
	}
	delta := -frames
	s.scrollDelta = &delta
	s.cineMark = time.Now()
	return true
}
