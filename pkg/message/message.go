// Package message defines the wire types shared between the viewer and the
// remote render server: the signaling envelope, the per-view connection
// config, the case/protocol catalog, and the layout geometry they reference.
package message

// LayoutRect is a sub-rectangle in window pixel coordinates.
type LayoutRect struct {
	X      uint32 `json:"x"`
	Y      uint32 `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Contains reports whether the point (x, y) lies inside the rectangle,
// borders included.
func (r LayoutRect) Contains(x, y float64) bool {
	left := float64(r.X)
	right := float64(r.X + r.Width)
	top := float64(r.Y)
	bottom := float64(r.Y + r.Height)

	return x >= left && x <= right && y >= top && y <= bottom
}

// Area returns the pixel area of the rectangle.
func (r LayoutRect) Area() uint32 {
	return r.Width * r.Height
}

// ViewportSize is the pixel size of one view's viewport.
type ViewportSize struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// ClientConfig is the per-view connection request sent to the server at
// connect time and on renegotiation.
type ClientConfig struct {
	ID           string       `json:"id"`
	Viewport     ViewportSize `json:"viewport"`
	VideoScaling float32      `json:"video_scaling"`
	GPU          bool         `json:"gpu"`
	Lossless     bool         `json:"lossless"`
	Bitrate      float32      `json:"bitrate"`
	Preset       string       `json:"preset"`
	FullRange    bool         `json:"fullrange"`
}

// CaseMeta identifies a selectable media case and its frame count.
// Immutable once received from the server.
type CaseMeta struct {
	Key            string `json:"key"`
	NumberOfImages int    `json:"number_of_images"`
}

// PaneCfg assigns a case key to one pane slot of a layout template.
type PaneCfg struct {
	Case string `json:"case"`
}

// LayoutCfg is a named rows x columns partition template with one case key
// per resulting pane slot, in row-major order.
type LayoutCfg struct {
	Name    string    `json:"name"`
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	Panes   []PaneCfg `json:"panes"`
}

// Protocols is the catalog of layout templates delivered by the server.
type Protocols struct {
	Layout []LayoutCfg `json:"layout"`
}

// Envelope is a WebSocket signaling message. Type selects which of the
// optional fields are meaningful.
type Envelope struct {
	Type string `json:"type"` // connect, getcases, cases, sdp, ice, size, error, close

	// connect / reconfigure
	Configs []ClientConfig `json:"configs,omitempty"`

	// sdp
	SDPType string `json:"sdpType,omitempty"` // offer or answer
	SDP     string `json:"sdp,omitempty"`

	// ice
	Candidate     string `json:"candidate,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`

	// cases
	Cases     []CaseMeta `json:"cases,omitempty"`
	Protocols *Protocols `json:"protocols,omitempty"`

	// size: the server announces the encoded size of one video stream
	TrackID string `json:"trackId,omitempty"`
	Width   uint32 `json:"width,omitempty"`
	Height  uint32 `json:"height,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}
