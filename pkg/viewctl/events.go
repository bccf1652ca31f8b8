package viewctl

// Event is an input event abstracted from the host window system. Pointer
// coordinates are in window pixels; each layer of the view hierarchy
// translates them into its own local space before forwarding.
type Event interface {
	isEvent()
}

// PointerMoved reports the pointer position.
type PointerMoved struct {
	X float64
	Y float64
}

// Button identifies a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// ButtonChanged reports a pointer button press or release.
type ButtonChanged struct {
	Button  Button
	Pressed bool
}

// WheelMoved reports a scroll wheel step. Positive is away from the user.
type WheelMoved struct {
	Delta float32
}

// ModifiersChanged reports the current keyboard modifier state.
type ModifiersChanged struct {
	Ctrl bool
}

// KeyAction is a named keyboard command consumed by the view hierarchy.
type KeyAction uint8

const (
	KeyToggleSync KeyAction = iota
	KeyToggleCine
	KeyCineFaster
	KeyCineSlower
	KeyNextCase
	KeyPreviousCase
	KeyNextProtocol
	KeyPreviousProtocol
	KeyBitrateUp
	KeyBitrateDown
	KeyTogglePark
)

// KeyPressed reports a named key command.
type KeyPressed struct {
	Action KeyAction
}

func (PointerMoved) isEvent()     {}
func (ButtonChanged) isEvent()    {}
func (WheelMoved) isEvent()       {}
func (ModifiersChanged) isEvent() {}
func (KeyPressed) isEvent()       {}
