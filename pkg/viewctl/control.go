package viewctl

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
)

// Views start at a small default size; the first layout pass resizes them.
const (
	defaultViewWidth  = 256
	defaultViewHeight = 256
)

// doubleClickWindow is the maximum gap between left clicks that counts as a
// double click (park/restore toggle).
const doubleClickWindow = 200 * time.Millisecond

// Config carries the startup settings for the view controller.
type Config struct {
	Views        int
	BitrateScale float32
	GPU          bool
	Preset       string
	Lossless     bool
	VideoScaling float32
	FullRange    bool
	CaseKey      string
	ProtocolKey  string
	Schedule     schedule.Schedule
}

// Control owns the fixed pool of views, the active subset, input focus
// routing, the case/protocol catalog, partition policy, park/restore, and
// cross-pane scroll synchronization.
//
// All mutable view and pane state lives behind one mutex. Every public
// method locks it for its own duration only; outgoing render state is
// serialized under the lock but sent after release.
type Control struct {
	mu sync.Mutex

	views  []*View
	active []int
	focus  int
	layout message.LayoutRect

	defaultCaseKey     string
	defaultProtocolKey string
	currentProtocol    string
	protocols          *message.Protocols
	cases              []message.CaseMeta

	rows      int
	cols      int
	lastClick time.Time
	parked    *parkedState
}

type parkedState struct {
	rows   int
	cols   int
	states [][]ParkedPane
}

// NewControl creates the view pool. Views live for the process lifetime and
// are reused, never recreated, across case and protocol changes.
func NewControl(cfg Config) *Control {
	viewCfg := ViewConfig{
		BitrateScale: cfg.BitrateScale,
		GPU:          cfg.GPU,
		Preset:       cfg.Preset,
		Lossless:     cfg.Lossless,
		VideoScaling: cfg.VideoScaling,
		FullRange:    cfg.FullRange,
		Schedule:     cfg.Schedule,
	}

	n := cfg.Views
	if n < 1 {
		n = 1
	}
	views := make([]*View, 0, n)
	for i := 0; i < n; i++ {
		views = append(views, NewView(i, message.LayoutRect{
			Width:  defaultViewWidth,
			Height: defaultViewHeight,
		}, viewCfg))
	}

	return &Control{
		views:              views,
		active:             []int{0},
		focus:              -1,
		defaultCaseKey:     cfg.CaseKey,
		defaultProtocolKey: cfg.ProtocolKey,
		rows:               1,
		cols:               1,
		lastClick:          time.Now(),
	}
}

// Layout returns the controller rectangle.
func (c *Control) Layout() message.LayoutRect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layout
}

// ClientConfigs builds the connection request batch, one per view.
func (c *Control) ClientConfigs() []message.ClientConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	configs := make([]message.ClientConfig, 0, len(c.views))
	for _, view := range c.views {
		configs = append(configs, view.ClientConfig())
	}
	return configs
}

// activeApply runs f on every active view. Indices in the active list are
// always valid; a miss is a broken invariant.
func (c *Control) activeApply(f func(*View)) {
	for _, idx := range c.active {
		if idx >= len(c.views) {
			panic("viewctl: active view index out of range")
		}
		f(c.views[idx])
	}
}

func (c *Control) handleFocus(x, y float64) {
	c.focus = -1
	for _, idx := range c.active {
		if c.views[idx].Contains(x, y) {
			c.focus = idx
			break
		}
	}
}

func (c *Control) focusedView() *View {
	if c.focus < 0 {
		return nil
	}
	if c.focus >= len(c.views) {
		panic("viewctl: focused view index out of range")
	}
	return c.views[c.focus]
}

func (c *Control) clearFocus() {
	c.focus = -1
	for _, view := range c.views {
		view.clearFocus()
	}
}

// HandleEvent routes one input event: pointer movement resolves focus and
// is translated into the focused view's coordinates; catalog and park keys
// are handled here; everything else goes to the focused view.
func (c *Control) HandleEvent(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleEvent(ev)
}

func (c *Control) handleEvent(ev Event) bool {
	switch e := ev.(type) {
	case PointerMoved:
		local := PointerMoved{
			X: e.X - float64(c.layout.X),
			Y: e.Y - float64(c.layout.Y),
		}
		c.handleFocus(local.X, local.Y)
		return c.forwardEvent(local)
	case KeyPressed:
		switch e.Action {
		case KeyNextCase:
			c.changeCase(1)
			return true
		case KeyPreviousCase:
			c.changeCase(-1)
			return true
		case KeyNextProtocol:
			c.changeProtocol(1)
			return true
		case KeyPreviousProtocol:
			c.changeProtocol(-1)
			return true
		case KeyTogglePark:
			c.togglePark()
			return true
		}
		return c.forwardEvent(ev)
	case ButtonChanged:
		if e.Button == ButtonLeft && e.Pressed {
			sinceLast := time.Since(c.lastClick)
			c.lastClick = time.Now()
			if sinceLast < doubleClickWindow {
				c.togglePark()
				return true
			}
		}
		return c.forwardEvent(ev)
	default:
		return c.forwardEvent(ev)
	}
}

func (c *Control) forwardEvent(ev Event) bool {
	view := c.focusedView()
	if view == nil {
		return false
	}
	return view.HandleEvent(ev)
}

// HideCursor reports whether the focused pane wants the cursor hidden.
func (c *Control) HideCursor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := c.focusedView()
	if view == nil {
		return false
	}
	return view.HideCursor()
}

// UpdateFocused runs the interaction step for the focused pane and applies
// any resulting sync operation across the active views.
func (c *Control) UpdateFocused() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var op *ScrollSync
	if view := c.focusedView(); view != nil {
		if pane := view.FocusedPane(); pane != nil {
			op = pane.Update()
		}
	}
	c.applyUpdate(op)
}

// applyUpdate runs the regular update on all active views, or the sync
// variant when a pane requested a scroll sync.
func (c *Control) applyUpdate(op *ScrollSync) {
	if op != nil {
		log.Printf("Propagating sync op from pane %s", op.Origin)
		c.activeApply(func(v *View) { v.UpdateSync(*op) })
		return
	}
	c.activeApply((*View).Update)
}

// HandleTick advances cine playback on every active view. At most one
// resulting sync operation is applied per tick; applying several would let
// synchronized panes feed back into each other.
func (c *Control) HandleTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ops []ScrollSync
	c.activeApply(func(v *View) {
		ops = append(ops, v.HandleTimerTick()...)
	})
	if len(ops) > 0 {
		c.applyUpdate(&ops[0])
	}
}

// PushState sends one render state message per dirty active view. The
// payloads are assembled under the lock and sent after it is released; a
// missing or unopened channel is a silent no-op.
func (c *Control) PushState() {
	type outbound struct {
		viewID  int
		payload string
		channel DataChannel
	}

	c.mu.Lock()
	var outs []outbound
	c.activeApply(func(v *View) {
		if payload, channel, ok := v.PendingState(); ok {
			outs = append(outs, outbound{viewID: v.VideoID(), payload: payload, channel: channel})
		}
	})
	c.mu.Unlock()

	for _, out := range outs {
		if out.channel == nil || !out.channel.IsOpen() {
			continue
		}
		if err := out.channel.SendText(out.payload); err != nil {
			log.Printf("Failed to send state for view %d: %v", out.viewID, err)
		}
	}
}

// SetCatalog stores the case and protocol catalogs delivered by the
// signaling collaborator.
func (c *Control) SetCatalog(protocols *message.Protocols, cases []message.CaseMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protocols = protocols
	c.cases = cases
}

// CaseList returns the loaded case keys for display.
func (c *Control) CaseList() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cases) == 0 {
		return "<No cases loaded>"
	}
	keys := make([]string, 0, len(c.cases))
	for _, meta := range c.cases {
		keys = append(keys, meta.Key)
	}
	return strings.Join(keys, "\n")
}

// ProtocolList returns the loaded protocol names for display.
func (c *Control) ProtocolList() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.protocols == nil || len(c.protocols.Layout) == 0 {
		return "<No protocols loaded>"
	}
	names := make([]string, 0, len(c.protocols.Layout))
	for _, layout := range c.protocols.Layout {
		names = append(names, layout.Name)
	}
	return strings.Join(names, "\n")
}

func (c *Control) caseForKey(key string) *message.CaseMeta {
	for i := range c.cases {
		if c.cases[i].Key == key {
			meta := c.cases[i]
			return &meta
		}
	}
	return nil
}

// changeCase advances the focused pane's case by direction steps through
// the catalog, wrapping in both directions. A pane without a case starts at
// the first catalog entry.
func (c *Control) changeCase(direction int) {
	if len(c.cases) == 0 {
		log.Printf("No case catalog loaded")
		return
	}

	view := c.focusedView()
	if view == nil {
		return
	}
	pane := view.FocusedPane()
	if pane == nil {
		return
	}

	next := 0
	if key, ok := pane.CaseKey(); ok {
		current := -1
		for i := range c.cases {
			if c.cases[i].Key == key {
				current = i
				break
			}
		}
		if current >= 0 {
			n := len(c.cases)
			next = ((current+direction)%n + n) % n
		}
	}

	meta := c.cases[next]
	pane.SetCase(&meta)
}

// changeProtocol advances the current layout template by direction steps
// through the catalog, wrapping in both directions, and applies it.
func (c *Control) changeProtocol(direction int) {
	if c.protocols == nil || len(c.protocols.Layout) == 0 {
		log.Printf("No protocol catalog loaded")
		return
	}

	layouts := c.protocols.Layout
	next := 0
	if c.currentProtocol != "" {
		current := -1
		for i := range layouts {
			if layouts[i].Name == c.currentProtocol {
				current = i
				break
			}
		}
		if current >= 0 {
			n := len(layouts)
			next = ((current+direction)%n + n) % n
		}
	}
	c.setProtocol(layouts[next])
}

// SetProtocol applies a layout template: repartition to its grid and assign
// its case keys to the resulting pane slots in template order.
func (c *Control) SetProtocol(protocol message.LayoutCfg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setProtocol(protocol)
}

func (c *Control) setProtocol(protocol message.LayoutCfg) {
	log.Printf("Setting protocol %q partition %dx%d", protocol.Name, protocol.Rows, protocol.Columns)
	c.currentProtocol = protocol.Name

	c.partition(protocol.Rows, protocol.Columns)

	// One case per pane slot, consumed across the active views in order.
	// Unknown keys leave the slot empty.
	metas := make([]*message.CaseMeta, 0, len(protocol.Panes))
	for _, pane := range protocol.Panes {
		meta := c.caseForKey(pane.Case)
		if meta == nil {
			log.Printf("No case for key %q", pane.Case)
		}
		metas = append(metas, meta)
	}

	cursor := 0
	next := func() *message.CaseMeta {
		if cursor >= len(metas) {
			return nil
		}
		meta := metas[cursor]
		cursor++
		return meta
	}
	c.activeApply(func(v *View) { v.SetCases(next) })
}

// SetCase binds every active view to the same case.
func (c *Control) SetCase(meta *message.CaseMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCase(meta)
}

func (c *Control) setCase(meta *message.CaseMeta) {
	c.activeApply(func(v *View) { v.SetCase(meta) })
}

// SelectCaseKey looks a case up by key and applies it to the active views.
// Unknown keys are logged and leave the state unchanged.
func (c *Control) SelectCaseKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectCaseKey(key)
}

func (c *Control) selectCaseKey(key string) {
	meta := c.caseForKey(key)
	if meta == nil {
		log.Printf("Failed to find case with key %q", key)
		return
	}
	log.Printf("Selected case %q", meta.Key)
	c.setCase(meta)
}

// SelectProtocolKey looks a layout template up by name and applies it.
// Unknown names are logged and leave the state unchanged.
func (c *Control) SelectProtocolKey(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectProtocolKey(name)
}

func (c *Control) selectProtocolKey(name string) {
	if c.protocols != nil {
		for _, layout := range c.protocols.Layout {
			if layout.Name == name {
				log.Printf("Selected protocol %q", layout.Name)
				c.setProtocol(layout)
				return
			}
		}
	}
	log.Printf("Failed to find protocol with name %q", name)
}

// SelectDefaultDisplay applies the configured protocol if one is set, else
// the configured case, else the first case in the catalog.
func (c *Control) SelectDefaultDisplay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.defaultProtocolKey != "" {
		log.Printf("Using preferred protocol %q", c.defaultProtocolKey)
		c.selectProtocolKey(c.defaultProtocolKey)
		return
	}
	if c.defaultCaseKey != "" {
		c.selectCaseKey(c.defaultCaseKey)
		return
	}
	log.Printf("No default case set, using first case")
	if len(c.cases) == 0 {
		log.Printf("No cases found")
		return
	}
	meta := c.cases[0]
	c.setCase(&meta)
}

// SetActive replaces the active view set. Out-of-range indices are dropped
// and duplicates collapse, keeping the active list valid and unique.
func (c *Control) SetActive(idxs []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setActive(idxs)
}

func (c *Control) setActive(idxs []int) {
	seen := make(map[int]bool, len(idxs))
	active := make([]int, 0, len(idxs))
	for _, idx := range idxs {
		if idx < 0 || idx >= len(c.views) || seen[idx] {
			continue
		}
		seen[idx] = true
		active = append(active, idx)
	}
	c.active = active
}

// Active returns a copy of the active view indices.
func (c *Control) Active() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.active...)
}

// SetLayout moves and resizes the controller rectangle and retiles the
// active views into it.
func (c *Control) SetLayout(layout message.LayoutRect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = layout
	c.updatePartitions()
}

// SetWindowSize recenters the fixed layout inside a resized window without
// retiling, and invalidates the views so stale-size frames get dropped.
func (c *Control) SetWindowSize(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	x := (float32(width) - float32(c.layout.Width)) / 2
	if x < 0 {
		x = 0
	}
	y := (float32(height) - float32(c.layout.Height)) / 2
	if y < 0 {
		y = 0
	}
	c.layout.X = uint32(x)
	c.layout.Y = uint32(y)

	c.invalidate()
}

// SetDataChannel binds an incoming data channel to the view whose derived
// label matches. Mismatched labels are logged and dropped.
func (c *Control) SetDataChannel(channel DataChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	label := channel.Label()
	for _, view := range c.views {
		if view.DataID() == label {
			view.SetDataChannel(channel)
			return
		}
	}
	log.Printf("Failed to find view for data channel with label %q", label)
}

// PushSample routes a decoded frame to the view it is tagged for.
func (c *Control) PushSample(sample *Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sample.ViewID < 0 || sample.ViewID >= len(c.views) {
		log.Printf("Failed to find view with index %d", sample.ViewID)
		return
	}
	c.views[sample.ViewID].PushSample(sample)
}

// Partition sets the requested pane grid and redistributes panes over the
// view pool.
func (c *Control) Partition(rows, columns int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partition(rows, columns)
}

func (c *Control) partition(rows, columns int) {
	c.rows = rows
	c.cols = columns
	c.updatePartitions()
}

// updatePartitions distributes the requested pane grid over the fixed view
// pool: one view per pane when enough views exist, else one view per row,
// else a single composited view carrying the whole grid.
func (c *Control) updatePartitions() {
	// The view/pane set may change entirely; stale focus would dangle.
	c.clearFocus()

	rows, columns := c.rows, c.cols
	if rows < 1 || columns < 1 {
		log.Printf("Ignoring degenerate partition %dx%d", rows, columns)
		return
	}

	var viewRows, viewCols, paneRows, paneCols int
	switch {
	case rows*columns <= len(c.views):
		log.Printf("Each pane gets its own view")
		viewRows, viewCols, paneRows, paneCols = rows, columns, 1, 1
	case rows <= len(c.views):
		log.Printf("Each row gets its own view")
		viewRows, viewCols, paneRows, paneCols = rows, 1, 1, columns
	default:
		log.Printf("All panes in a single view")
		viewRows, viewCols, paneRows, paneCols = 1, 1, rows, columns
	}

	layouts := Tile(c.layout.Width, c.layout.Height, viewRows, viewCols)
	idxs := make([]int, len(layouts))
	for i := range idxs {
		idxs[i] = i
	}
	c.setActive(idxs)

	for i, idx := range c.active {
		view := c.views[idx]
		view.SetLayout(layouts[i])
		view.Partition(paneRows, paneCols)
	}
}

// TogglePark collapses to a single pane carrying the focused pane's case
// and transform, or restores the snapshotted arrangement if one is parked.
func (c *Control) TogglePark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.togglePark()
}

func (c *Control) togglePark() {
	if c.parked != nil {
		log.Printf("Restoring parked views")
		c.restoreParked()
		return
	}

	view := c.focusedView()
	if view == nil {
		return
	}
	pane := view.FocusedPane()
	if pane == nil {
		return
	}
	meta, state := pane.ParkState()

	log.Printf("Parking views")
	c.parkState()

	c.partition(1, 1)
	c.activeApply(func(v *View) {
		v.SetCase(meta)
		v.SetViewState(state)
	})
}

func (c *Control) parkState() {
	states := make([][]ParkedPane, 0, len(c.active))
	c.activeApply(func(v *View) {
		states = append(states, v.ParkState())
	})
	c.parked = &parkedState{rows: c.rows, cols: c.cols, states: states}
}

// restoreParked reapplies the snapshot and discards it; a snapshot is
// consumed exactly once.
func (c *Control) restoreParked() {
	parked := c.parked
	if parked == nil {
		return
	}
	c.parked = nil

	c.partition(parked.rows, parked.cols)
	for i, idx := range c.active {
		if i >= len(parked.states) {
			break
		}
		c.views[idx].RestoreParked(parked.states[i])
	}
}

// CurrentProtocol returns the name of the applied layout template, or "".
func (c *Control) CurrentProtocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentProtocol
}

// Parked reports whether a parked snapshot is outstanding.
func (c *Control) Parked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parked != nil
}

// Invalidate marks every active view dirty.
func (c *Control) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidate()
}

func (c *Control) invalidate() {
	c.activeApply((*View).Invalidate)
}
