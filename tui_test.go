package main

import (
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
	"github.com/tomaslejdung/goview/pkg/viewctl"
)

type stubChannel struct {
	label string
	sent  []string
}

func (s *stubChannel) Label() string { return s.label }
func (s *stubChannel) IsOpen() bool  { return true }
func (s *stubChannel) SendText(text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubChannel) lastPaneKey(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.sent)

	var msg viewctl.DataMessage
	require.NoError(t, json.Unmarshal([]byte(s.sent[len(s.sent)-1]), &msg))
	require.NotNil(t, msg.NewState)
	require.NotEmpty(t, msg.NewState.Panes)
	require.NotNil(t, msg.NewState.Panes[0].Key)
	return *msg.NewState.Panes[0].Key
}

// Horizontal arrows step the case, vertical arrows step the protocol.
func TestArrowKeyBindings(t *testing.T) {
	control := viewctl.NewControl(viewctl.Config{Views: 1, Schedule: schedule.Default})
	control.SetLayout(message.LayoutRect{Width: 800, Height: 800})
	control.SetCatalog(&message.Protocols{Layout: []message.LayoutCfg{
		{Name: "single", Rows: 1, Columns: 1, Panes: []message.PaneCfg{{Case: "case-a"}}},
		{Name: "pair", Rows: 1, Columns: 1, Panes: []message.PaneCfg{{Case: "case-b"}}},
	}}, []message.CaseMeta{
		{Key: "case-a", NumberOfImages: 4},
		{Key: "case-b", NumberOfImages: 2},
	})

	ch := &stubChannel{label: "video0-data"}
	control.SetDataChannel(ch)
	control.SelectProtocolKey("single")
	control.HandleEvent(viewctl.PointerMoved{X: 100, Y: 100})

	m := model{control: control}

	control.PushState()
	require.Equal(t, "case-a", ch.lastPaneKey(t))

	m.handleKey(tea.KeyMsg{Type: tea.KeyRight})
	control.PushState()
	require.Equal(t, "case-b", ch.lastPaneKey(t))

	m.handleKey(tea.KeyMsg{Type: tea.KeyLeft})
	control.PushState()
	require.Equal(t, "case-a", ch.lastPaneKey(t))
	require.Equal(t, "single", control.CurrentProtocol(), "case keys leave the protocol alone")

	m.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, "pair", control.CurrentProtocol())

	m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "single", control.CurrentProtocol())
}
