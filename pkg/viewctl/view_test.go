package viewctl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
)

type fakeChannel struct {
	label string
	open  bool
	sent  []string
}

func (f *fakeChannel) Label() string { return f.label }
func (f *fakeChannel) IsOpen() bool  { return f.open }
func (f *fakeChannel) SendText(text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func testView(t *testing.T) *View {
	t.Helper()
	v := NewView(0, message.LayoutRect{Width: 256, Height: 256}, ViewConfig{
		BitrateScale: 1.0,
		VideoScaling: 1.0,
		Schedule:     schedule.Default,
	})
	v.SetLayout(message.LayoutRect{Width: 640, Height: 480})
	return v
}

func TestViewDataID(t *testing.T) {
	v := testView(t)
	require.Equal(t, "video0-data", v.DataID())

	other := NewView(3, message.LayoutRect{Width: 256, Height: 256}, ViewConfig{Schedule: schedule.Default})
	require.Equal(t, "video3-data", other.DataID())
}

func TestSetDataChannelMatchesLabel(t *testing.T) {
	v := testView(t)

	require.False(t, v.SetDataChannel(&fakeChannel{label: "video1-data"}))

	ch := &fakeChannel{label: "video0-data", open: true}
	require.True(t, v.SetDataChannel(ch))
	require.False(t, v.SetDataChannel(ch), "channel binds once")
}

func TestAcceptSampleTolerance(t *testing.T) {
	v := testView(t)

	tests := []struct {
		name   string
		width  uint32
		height uint32
		want   bool
	}{
		{"exact", 640, 480, true},
		{"slightly smaller", 640, 440, true},
		{"slightly larger", 640, 520, true},
		{"stale size", 320, 240, false},
		{"ten percent off", 640, 528, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, v.acceptSample(&Sample{Width: tt.width, Height: tt.height}))
		})
	}
}

func TestPushSampleKeepsNewestAccepted(t *testing.T) {
	v := testView(t)

	first := &Sample{Width: 640, Height: 480, Data: []byte{1}}
	second := &Sample{Width: 640, Height: 480, Data: []byte{2}}
	stale := &Sample{Width: 100, Height: 100, Data: []byte{3}}

	v.PushSample(first)
	v.PushSample(second)
	require.Same(t, second, v.CurrentSample())

	v.PushSample(stale)
	require.Same(t, second, v.CurrentSample(), "rejected frames leave the buffer alone")
}

func TestSetLayoutDropsBufferedSample(t *testing.T) {
	v := testView(t)
	v.PushSample(&Sample{Width: 640, Height: 480})
	require.NotNil(t, v.CurrentSample())

	v.SetLayout(message.LayoutRect{Width: 800, Height: 600})
	require.Nil(t, v.CurrentSample())
}

func TestPendingStateSequencing(t *testing.T) {
	v := testView(t)

	payload, _, ok := v.PendingState()
	require.True(t, ok, "fresh layout leaves the view dirty")

	var msg DataMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	require.NotNil(t, msg.NewState)
	require.Equal(t, uint64(0), msg.NewState.Seq)
	require.Equal(t, uint32(640), msg.NewState.Layout.Width)
	require.Len(t, msg.NewState.Panes, 1)

	// The state repeats until a matching frame confirms it.
	payload, _, ok = v.PendingState()
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	require.Equal(t, uint64(1), msg.NewState.Seq)

	v.PushSample(&Sample{Width: 640, Height: 480})
	_, _, ok = v.PendingState()
	require.False(t, ok, "an accepted frame settles the view")

	v.Invalidate()
	payload, _, ok = v.PendingState()
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	require.Equal(t, uint64(2), msg.NewState.Seq, "sequence has no gaps")
}

func TestPartitionAssignsPaneIdentities(t *testing.T) {
	v := testView(t)
	v.SetLayout(message.LayoutRect{Width: 400, Height: 400})
	v.Partition(2, 2)

	panes := v.Panes()
	require.Len(t, panes, 4)
	require.Equal(t, "0:0", panes[0].ID())
	require.Equal(t, "0:3", panes[3].ID())

	// Shrinking drops trailing panes, growing adds fresh ones.
	v.Partition(1, 1)
	require.Len(t, v.Panes(), 1)
	require.Equal(t, "0:0", v.Panes()[0].ID())
}

func TestParkRoundTrip(t *testing.T) {
	v := testView(t)
	v.SetLayout(message.LayoutRect{Width: 400, Height: 400})
	v.Partition(1, 2)

	metaA := &message.CaseMeta{Key: "case-a", NumberOfImages: 10}
	metaB := &message.CaseMeta{Key: "case-b", NumberOfImages: 5}
	next := func() func() *message.CaseMeta {
		metas := []*message.CaseMeta{metaA, metaB}
		return func() *message.CaseMeta {
			m := metas[0]
			metas = metas[1:]
			return m
		}
	}()
	v.SetCases(next)

	parked := v.ParkState()
	require.Len(t, parked, 2)
	require.Equal(t, "case-a", parked[0].Case.Key)
	require.Equal(t, "case-b", parked[1].Case.Key)

	v.SetCase(metaA)
	require.Equal(t, "case-a", v.Panes()[1].Case().Key)

	v.RestoreParked(parked)
	require.Equal(t, "case-a", v.Panes()[0].Case().Key)
	require.Equal(t, "case-b", v.Panes()[1].Case().Key)
}

func TestBitrate(t *testing.T) {
	v := testView(t)
	require.InDelta(t, 3.5, v.Bitrate(), 1e-4, "640x480 on the default schedule")

	v.AdjustBitrateScale(1)
	require.InDelta(t, 3.85, v.Bitrate(), 1e-4)

	for i := 0; i < 20; i++ {
		v.AdjustBitrateScale(-1)
	}
	require.InDelta(t, 0.35, v.Bitrate(), 1e-4, "scale floors at 0.1")
}

func TestLosslessBitrateSentinel(t *testing.T) {
	v := NewView(0, message.LayoutRect{Width: 640, Height: 480}, ViewConfig{
		BitrateScale: 1.0,
		Lossless:     true,
		Schedule:     schedule.Default,
	})
	require.Zero(t, v.Bitrate())

	cfg := v.ClientConfig()
	require.True(t, cfg.Lossless)
	require.Zero(t, cfg.Bitrate)
	require.Equal(t, "NativeClient_0", cfg.ID)
}
