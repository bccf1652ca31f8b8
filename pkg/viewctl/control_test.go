package viewctl

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
)

func testControl(t *testing.T, views int) *Control {
	t.Helper()
	c := NewControl(Config{
		Views:        views,
		BitrateScale: 1.0,
		VideoScaling: 1.0,
		Schedule:     schedule.Default,
	})
	c.SetLayout(message.LayoutRect{Width: 800, Height: 800})
	// The construction click mark would make the first test click look
	// like a double click.
	c.lastClick = time.Now().Add(-time.Second)
	return c
}

func testCatalog() (*message.Protocols, []message.CaseMeta) {
	protocols := &message.Protocols{Layout: []message.LayoutCfg{
		{Name: "single", Rows: 1, Columns: 1, Panes: []message.PaneCfg{{Case: "case-a"}}},
		{Name: "pair", Rows: 2, Columns: 1, Panes: []message.PaneCfg{{Case: "case-a"}, {Case: "case-b"}}},
	}}
	cases := []message.CaseMeta{
		{Key: "case-a", NumberOfImages: 10},
		{Key: "case-b", NumberOfImages: 5},
		{Key: "case-c", NumberOfImages: 2},
	}
	return protocols, cases
}

func TestPartitionPrecedence(t *testing.T) {
	c := testControl(t, 4)

	// Enough views: every pane gets its own view.
	c.Partition(2, 2)
	require.Equal(t, []int{0, 1, 2, 3}, c.Active())
	for _, idx := range c.Active() {
		require.Len(t, c.views[idx].Panes(), 1)
	}

	// Enough views per row: each row becomes one view with a pane per
	// column.
	c.Partition(3, 3)
	require.Equal(t, []int{0, 1, 2}, c.Active())
	for _, idx := range c.Active() {
		require.Len(t, c.views[idx].Panes(), 3)
	}

	// Too many rows: everything composites into a single view.
	c.Partition(5, 5)
	require.Equal(t, []int{0}, c.Active())
	require.Len(t, c.views[0].Panes(), 25)
}

func TestSetActiveFiltersInvalid(t *testing.T) {
	c := testControl(t, 3)
	c.SetActive([]int{0, 2, 9, -1, 0})
	require.Equal(t, []int{0, 2}, c.Active())
}

func TestFocusRouting(t *testing.T) {
	c := testControl(t, 2)
	c.Partition(1, 2)
	require.Equal(t, []int{0, 1}, c.Active())

	_, cases := testCatalog()
	c.SetCatalog(nil, cases)
	c.SetCase(&cases[0])

	// Scroll in the right half; only the right view's pane steps.
	c.HandleEvent(PointerMoved{X: 600, Y: 100})
	c.HandleEvent(WheelMoved{Delta: -3})
	c.UpdateFocused()

	left := c.views[0].Panes()[0].interaction.RenderState()
	right := c.views[1].Panes()[0].interaction.RenderState()
	require.Equal(t, uint32(0), *left.Frame)
	require.Equal(t, uint32(3), *right.Frame)
}

func TestCaseCycling(t *testing.T) {
	c := testControl(t, 1)
	protocols, cases := testCatalog()
	c.SetCatalog(protocols, cases)

	c.HandleEvent(PointerMoved{X: 100, Y: 100})
	pane := c.views[0].Panes()[0]

	c.HandleEvent(KeyPressed{Action: KeyNextCase})
	key, ok := pane.CaseKey()
	require.True(t, ok)
	require.Equal(t, "case-a", key, "a caseless pane starts at the first entry")

	c.HandleEvent(KeyPressed{Action: KeyNextCase})
	key, _ = pane.CaseKey()
	require.Equal(t, "case-b", key)

	c.HandleEvent(KeyPressed{Action: KeyPreviousCase})
	c.HandleEvent(KeyPressed{Action: KeyPreviousCase})
	key, _ = pane.CaseKey()
	require.Equal(t, "case-c", key, "cycling wraps backwards")
}

func TestProtocolSelection(t *testing.T) {
	c := testControl(t, 2)
	protocols, cases := testCatalog()
	c.SetCatalog(protocols, cases)

	c.SelectProtocolKey("pair")
	require.Equal(t, "pair", c.CurrentProtocol())
	require.Equal(t, []int{0, 1}, c.Active())

	keyA, _ := c.views[0].Panes()[0].CaseKey()
	keyB, _ := c.views[1].Panes()[0].CaseKey()
	require.Equal(t, "case-a", keyA)
	require.Equal(t, "case-b", keyB)

	// Cycling forward wraps through the protocol list.
	c.HandleEvent(KeyPressed{Action: KeyNextProtocol})
	require.Equal(t, "single", c.CurrentProtocol())
}

func TestSelectDefaultDisplayPrefersProtocol(t *testing.T) {
	c := NewControl(Config{
		Views:       2,
		ProtocolKey: "pair",
		CaseKey:     "case-c",
		Schedule:    schedule.Default,
	})
	c.SetLayout(message.LayoutRect{Width: 800, Height: 800})
	protocols, cases := testCatalog()
	c.SetCatalog(protocols, cases)

	c.SelectDefaultDisplay()
	require.Equal(t, "pair", c.CurrentProtocol())
}

func TestParkAndRestore(t *testing.T) {
	c := testControl(t, 2)
	protocols, cases := testCatalog()
	c.SetCatalog(protocols, cases)
	c.SelectProtocolKey("pair")

	// Park the second view's pane.
	c.HandleEvent(PointerMoved{X: 100, Y: 600})
	c.TogglePark()
	require.True(t, c.Parked())
	require.Equal(t, []int{0}, c.Active())

	key, _ := c.views[0].Panes()[0].CaseKey()
	require.Equal(t, "case-b", key, "the parked pane's case fills the screen")

	c.TogglePark()
	require.False(t, c.Parked())
	require.Equal(t, []int{0, 1}, c.Active())
	keyA, _ := c.views[0].Panes()[0].CaseKey()
	keyB, _ := c.views[1].Panes()[0].CaseKey()
	require.Equal(t, "case-a", keyA)
	require.Equal(t, "case-b", keyB)
}

func TestDoubleClickTogglesPark(t *testing.T) {
	c := testControl(t, 1)
	_, cases := testCatalog()
	c.SetCatalog(nil, cases)
	c.SetCase(&cases[0])

	c.HandleEvent(PointerMoved{X: 100, Y: 100})

	c.HandleEvent(ButtonChanged{Button: ButtonLeft, Pressed: true})
	require.False(t, c.Parked(), "a single click does not park")

	c.HandleEvent(ButtonChanged{Button: ButtonLeft, Pressed: false})
	c.HandleEvent(ButtonChanged{Button: ButtonLeft, Pressed: true})
	require.True(t, c.Parked(), "the second click within the window parks")
}

func TestHandleTickAppliesOneSyncOp(t *testing.T) {
	c := testControl(t, 2)
	c.Partition(1, 2)
	_, cases := testCatalog()
	c.SetCatalog(nil, cases)
	c.SetCase(&cases[0])

	// Sync both panes, run cine on the left one.
	c.HandleEvent(PointerMoved{X: 100, Y: 100})
	c.HandleEvent(KeyPressed{Action: KeyToggleSync})
	c.HandleEvent(KeyPressed{Action: KeyToggleCine})
	c.HandleEvent(PointerMoved{X: 600, Y: 100})
	c.HandleEvent(KeyPressed{Action: KeyToggleSync})

	// Make two cine frames due.
	c.views[0].Panes()[0].interaction.cineMark = time.Now().Add(-200 * time.Millisecond)
	c.HandleTick()

	left := c.views[0].Panes()[0].interaction.RenderState()
	right := c.views[1].Panes()[0].interaction.RenderState()
	require.Equal(t, uint32(2), *left.Frame, "origin stepped once")
	require.Equal(t, uint32(2), *right.Frame, "sync propagated to the sibling")
}

func TestSetWindowSizeCenters(t *testing.T) {
	c := testControl(t, 1)
	c.SetWindowSize(1000, 900)

	layout := c.Layout()
	require.Equal(t, uint32(100), layout.X)
	require.Equal(t, uint32(50), layout.Y)
	require.Equal(t, uint32(800), layout.Width)

	// Shrinking below the layout pins to the origin.
	c.SetWindowSize(400, 400)
	layout = c.Layout()
	require.Zero(t, layout.X)
	require.Zero(t, layout.Y)
}

func TestSetDataChannelRoutesByLabel(t *testing.T) {
	c := testControl(t, 2)

	ch := &fakeChannel{label: "video1-data", open: true}
	c.SetDataChannel(ch)
	require.Nil(t, c.views[0].channel)
	require.NotNil(t, c.views[1].channel)

	// Unknown labels are dropped.
	c.SetDataChannel(&fakeChannel{label: "video9-data"})
}

func TestPushStateSendsDirtyViews(t *testing.T) {
	c := testControl(t, 1)
	ch := &fakeChannel{label: "video0-data", open: true}
	c.SetDataChannel(ch)

	c.PushState()
	require.Len(t, ch.sent, 1)

	var msg DataMessage
	require.NoError(t, json.Unmarshal([]byte(ch.sent[0]), &msg))
	require.NotNil(t, msg.NewState)
	require.Equal(t, uint32(800), msg.NewState.Layout.Width)

	// A closed channel suppresses the send but not the serialization.
	ch.open = false
	c.Invalidate()
	c.PushState()
	require.Len(t, ch.sent, 1)
}

func TestClientConfigsOnePerView(t *testing.T) {
	c := testControl(t, 3)
	configs := c.ClientConfigs()
	require.Len(t, configs, 3)
	require.Equal(t, "NativeClient_0", configs[0].ID)
	require.Equal(t, "NativeClient_2", configs[2].ID)
}

func TestPushSampleRouting(t *testing.T) {
	c := testControl(t, 2)
	c.Partition(1, 2)

	c.PushSample(&Sample{ViewID: 1, Width: 400, Height: 800})
	require.Nil(t, c.views[0].CurrentSample())
	require.NotNil(t, c.views[1].CurrentSample())

	// Out-of-range views are logged and dropped.
	c.PushSample(&Sample{ViewID: 7})
}
