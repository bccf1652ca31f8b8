package viewctl

import (
	"log"

	"github.com/tomaslejdung/goview/pkg/message"
)

// PaneState is the per-pane part of an outgoing render state message.
type PaneState struct {
	Layout    message.LayoutRect `json:"layout"`
	ViewState ViewState          `json:"view_state"`
	Key       *string            `json:"key"`
}

// Pane is the smallest interactive sub-region: one interaction state
// machine bound to a sub-rectangle of its owning view and, optionally, a
// media case.
type Pane struct {
	id          string
	layout      message.LayoutRect
	interaction *InteractionState
	dirty       bool
	meta        *message.CaseMeta
}

// NewPane returns an empty pane with a neutral interaction state.
func NewPane() *Pane {
	return &Pane{
		id:          "default",
		interaction: NewInteractionState(),
	}
}

// ID returns the pane identity used to attribute sync operations.
func (p *Pane) ID() string {
	return p.id
}

// SetID assigns the pane identity.
func (p *Pane) SetID(id string) {
	p.id = id
}

// Contains reports whether a view-local point lies inside the pane.
func (p *Pane) Contains(x, y float64) bool {
	return p.layout.Contains(x, y)
}

// SetLayout moves the pane to a new sub-rectangle and marks it dirty.
func (p *Pane) SetLayout(layout message.LayoutRect) {
	p.layout = layout
	p.dirty = true
}

// Invalidate forces the next state push to include this pane.
func (p *Pane) Invalidate() {
	p.dirty = true
}

// SetCase binds the pane to a case (or none), resetting the interaction
// state so no anchor or transform leaks across cases.
func (p *Pane) SetCase(meta *message.CaseMeta) {
	p.interaction = NewInteractionState()
	p.meta = meta

	if meta != nil {
		p.interaction.SetImageCount(meta.NumberOfImages)
	} else {
		p.interaction.SetImageCount(0)
	}
	p.dirty = true
}

// Case returns the bound case, or nil.
func (p *Pane) Case() *message.CaseMeta {
	return p.meta
}

// CaseKey returns the bound case key, if any.
func (p *Pane) CaseKey() (string, bool) {
	if p.meta == nil {
		return "", false
	}
	return p.meta.Key, true
}

// HandleEvent folds one view-local event into the interaction state.
// Pointer positions are translated into pane-local coordinates; the
// sensitivity factor scales drag distance by the pane height.
func (p *Pane) HandleEvent(ev Event) bool {
	switch e := ev.(type) {
	case PointerMoved:
		scale := float32(1.0)
		if p.layout.Height > 0 {
			scale = 1.0 / float32(p.layout.Height)
		}
		p.interaction.HandleMove(e.X-float64(p.layout.X), e.Y-float64(p.layout.Y), scale)
		return true
	case ButtonChanged:
		p.interaction.HandleButton(e.Button, e.Pressed)
		return true
	case ModifiersChanged:
		p.interaction.HandleModifiers(e.Ctrl)
		return true
	case WheelMoved:
		p.interaction.HandleWheel(e.Delta)
		return true
	case KeyPressed:
		switch e.Action {
		case KeyToggleSync:
			p.interaction.ToggleSync()
			log.Printf("Sync on pane %s is %v", p.id, p.interaction.Synchronized())
			return true
		case KeyToggleCine:
			p.interaction.ToggleCine()
			return true
		case KeyCineFaster:
			p.interaction.AdjustCineSpeed(1)
			return true
		case KeyCineSlower:
			p.interaction.AdjustCineSpeed(-1)
			return true
		}
		return false
	}
	return false
}

// HideCursor reports whether the pane wants the host cursor hidden.
func (p *Pane) HideCursor() bool {
	return p.interaction.HideCursor()
}

// Update runs one interaction step. Returns a sync operation when a
// synchronized frame step needs propagating to sibling panes.
func (p *Pane) Update() *ScrollSync {
	updated, frames := p.interaction.Update()
	p.dirty = updated || p.dirty
	if frames == 0 {
		return nil
	}
	return &ScrollSync{Origin: p.id, Frames: frames}
}

// UpdateSync applies a sync operation issued by another pane, then runs the
// normal update step. The frame delta is injected as an inverted synthetic
// wheel event so the regular scroll law moves the frame.
func (p *Pane) UpdateSync(op ScrollSync) {
	if p.interaction.Synchronized() && p.id != op.Origin {
		p.interaction.HandleWheel(float32(-op.Frames))
	}
	p.Update()
}

// State returns the render snapshot and clears the dirty flag.
func (p *Pane) State() PaneState {
	p.dirty = false

	var key *string
	if p.meta != nil {
		k := p.meta.Key
		key = &k
	}
	return PaneState{
		Layout:    p.layout,
		ViewState: p.interaction.RenderState(),
		Key:       key,
	}
}

// ParkState snapshots the case binding and transform for park/restore.
func (p *Pane) ParkState() (*message.CaseMeta, ViewState) {
	return p.meta, p.interaction.RenderState()
}

// SetViewState replaces the transform and marks the pane dirty.
func (p *Pane) SetViewState(state ViewState) {
	p.interaction.SetRenderState(state)
	p.dirty = true
}

// HandleTimerTick advances cine playback. Returns true when a frame step
// became due and a normal Update should run.
func (p *Pane) HandleTimerTick() bool {
	return p.interaction.CineUpdate()
}

// Synchronized reports whether this pane participates in scroll sync.
func (p *Pane) Synchronized() bool {
	return p.interaction.Synchronized()
}
