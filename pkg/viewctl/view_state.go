package viewctl

import (
	"encoding/json"
	"fmt"
)

// ZoomMode selects how the zoom value is interpreted.
type ZoomMode uint8

const (
	// ZoomFit scales relative to the viewport (1.0 fills it).
	ZoomFit ZoomMode = iota
	// ZoomPixel scales relative to source pixels (1.0 is 1:1).
	ZoomPixel
)

// Zoom is the magnification component of a view state.
type Zoom struct {
	Mode  ZoomMode
	Value float32
}

// MarshalJSON serializes the zoom as an externally tagged union, e.g.
// {"fit": 1.0}, which is what the remote render server parses.
func (z Zoom) MarshalJSON() ([]byte, error) {
	switch z.Mode {
	case ZoomPixel:
		return json.Marshal(map[string]float32{"pixel": z.Value})
	default:
		return json.Marshal(map[string]float32{"fit": z.Value})
	}
}

// UnmarshalJSON parses the tagged union form produced by MarshalJSON.
func (z *Zoom) UnmarshalJSON(data []byte) error {
	var tagged map[string]float32
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if v, ok := tagged["fit"]; ok {
		*z = Zoom{Mode: ZoomFit, Value: v}
		return nil
	}
	if v, ok := tagged["pixel"]; ok {
		*z = Zoom{Mode: ZoomPixel, Value: v}
		return nil
	}
	return fmt.Errorf("unknown zoom variant in %s", data)
}

// PositionMode selects the coordinate space of a pan position.
type PositionMode uint8

const (
	// PositionRelative is relative to the viewport size.
	PositionRelative PositionMode = iota
	// PositionAbsolute is in source pixel coordinates.
	PositionAbsolute
)

// Position is the pan component of a view state.
type Position struct {
	Mode PositionMode
	X    float32
	Y    float32
}

// MarshalJSON serializes the position as an externally tagged union, e.g.
// {"relative": [0, 0]}.
func (p Position) MarshalJSON() ([]byte, error) {
	switch p.Mode {
	case PositionAbsolute:
		return json.Marshal(map[string][2]float32{"absolute": {p.X, p.Y}})
	default:
		return json.Marshal(map[string][2]float32{"relative": {p.X, p.Y}})
	}
}

// UnmarshalJSON parses the tagged union form produced by MarshalJSON.
func (p *Position) UnmarshalJSON(data []byte) error {
	var tagged map[string][2]float32
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if v, ok := tagged["relative"]; ok {
		*p = Position{Mode: PositionRelative, X: v[0], Y: v[1]}
		return nil
	}
	if v, ok := tagged["absolute"]; ok {
		*p = Position{Mode: PositionAbsolute, X: v[0], Y: v[1]}
		return nil
	}
	return fmt.Errorf("unknown position variant in %s", data)
}

// WL holds the window/level (contrast/brightness) transform parameters.
type WL struct {
	Width  float32 `json:"width"`
	Center float32 `json:"center"`
}

// ViewState is the full visual transform and playback position of one pane.
// It is mutated incrementally by interaction events and cloned into
// outgoing render state messages.
type ViewState struct {
	Zoom    Zoom        `json:"zoom"`
	Pos     Position    `json:"pos"`
	Frame   *uint32     `json:"frame"`
	WL      WL          `json:"wl"`
	Cursor  *[2]float32 `json:"cursor"`
	Variate *float32    `json:"variate"`
}

// NewViewState returns the neutral state: fit zoom, centered, no frame.
func NewViewState() ViewState {
	return ViewState{
		Zoom: Zoom{Mode: ZoomFit, Value: 1.0},
		Pos:  Position{Mode: PositionRelative},
		WL:   WL{Width: 1.0, Center: 1.0},
	}
}

// Clone returns a deep copy that shares no pointers with the receiver.
func (v ViewState) Clone() ViewState {
	out := v
	if v.Frame != nil {
		f := *v.Frame
		out.Frame = &f
	}
	if v.Cursor != nil {
		c := *v.Cursor
		out.Cursor = &c
	}
	if v.Variate != nil {
		va := *v.Variate
		out.Variate = &va
	}
	return out
}

// Scaled returns the state adjusted for a viewport scaled by the given
// factor. Fit zoom and WL are viewport-relative already; pixel zoom and
// positions scale. The cursor is dropped, it is only meaningful at the
// original scale.
func (v ViewState) Scaled(scale float32) ViewState {
	out := v.Clone()
	if out.Zoom.Mode == ZoomPixel {
		out.Zoom.Value *= scale
	}
	out.Pos.X *= scale
	out.Pos.Y *= scale
	out.Cursor = nil
	return out
}

// SetFrame replaces the frame index; nil means no frame selected.
func (v *ViewState) SetFrame(frame *uint32) {
	v.Frame = frame
}

// UpdateMagnification multiplies the current zoom by factor.
func (v *ViewState) UpdateMagnification(factor float32) {
	v.Zoom.Value *= factor
}

// SetPosition replaces the pan position, keeping the coordinate mode.
func (v *ViewState) SetPosition(x, y float32) {
	v.Pos.X = x
	v.Pos.Y = y
}

// UpdatePosition offsets the pan position by (dx, dy).
func (v *ViewState) UpdatePosition(dx, dy float32) {
	v.Pos.X += dx
	v.Pos.Y += dy
}

// UpdateCenter multiplies the WL center by scale.
func (v *ViewState) UpdateCenter(scale float32) {
	v.WL.Center *= scale
}

// UpdateWidth multiplies the WL width by scale.
func (v *ViewState) UpdateWidth(scale float32) {
	v.WL.Width *= scale
}

// UpdateVariate adds delta to the variate scalar, clamped to [0, 1],
// starting from 0 when unset. A nil delta clears the variate.
func (v *ViewState) UpdateVariate(delta *float32) {
	if delta == nil {
		v.Variate = nil
		return
	}
	next := *delta
	if v.Variate != nil {
		next += *v.Variate
	}
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	v.Variate = &next
}
