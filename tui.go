package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/timer"
	"github.com/tomaslejdung/goview/pkg/viewctl"
)

// interactionsPerSecond is the interaction poll rate. Pointer events between
// polls coalesce; one poll folds them into the view state.
const interactionsPerSecond = 61

// relayoutDelay debounces terminal resizes before the views re-sync.
const relayoutDelay = 500 * time.Millisecond

// Messages
type interactTickMsg struct{}

type statsTickMsg struct{}

type relayoutMsg struct {
	gen int
}

type signalMsg struct {
	env message.Envelope
}

type signalClosedMsg struct{}

type answerSentMsg struct {
	err error
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	keySepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
)

// trackRate is the per-second rate derived from two stats snapshots.
type trackRate struct {
	trackID string
	width   uint32
	height  uint32
	fps     float64
	mbps    float64
}

// Model
type model struct {
	config  Config
	control *viewctl.Control
	signal  *SignalClient
	viewer  *Viewer
	tick    *timer.Timer[tea.Msg]

	windowWidth  uint32
	windowHeight uint32

	termWidth  int
	termHeight int
	resizeGen  int

	buttons viewctl.Flags

	connected bool
	haveCases bool
	showLists bool
	lastError string

	prevStats map[string]StreamStats
	rates     []trackRate
}

func initialModel(config Config, control *viewctl.Control, signal *SignalClient, viewer *Viewer, tick *timer.Timer[tea.Msg]) model {
	return model{
		config:       config,
		control:      control,
		signal:       signal,
		viewer:       viewer,
		tick:         tick,
		windowWidth:  config.Width,
		windowHeight: config.Height,
		prevStats:    make(map[string]StreamStats),
	}
}

func (m model) Init() tea.Cmd {
	return tea.SetWindowTitle("GoView - Remote Viewer")
}

// pointerPosition maps a terminal cell to window pixel coordinates. Cell
// centers map proportionally onto the virtual window the layout lives in.
func (m model) pointerPosition(x, y int) (float64, float64) {
	if m.termWidth < 1 || m.termHeight < 1 {
		return 0, 0
	}
	px := (float64(x) + 0.5) / float64(m.termWidth) * float64(m.windowWidth)
	py := (float64(y) + 0.5) / float64(m.termHeight) * float64(m.windowHeight)
	return px, py
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.resizeGen++
		m.tick.Once(relayoutMsg{gen: m.resizeGen}, relayoutDelay)
		return m, nil

	case relayoutMsg:
		// Only the newest pending relayout applies; older ones were
		// superseded by further resizes.
		if msg.gen == m.resizeGen {
			m.control.SetWindowSize(m.windowWidth, m.windowHeight)
		}
		return m, nil

	case interactTickMsg:
		m.control.HandleTick()
		m.control.UpdateFocused()
		control := m.control
		return m, func() tea.Msg {
			control.PushState()
			return nil
		}

	case statsTickMsg:
		m.updateRates()
		return m, nil

	case signalMsg:
		return m.handleSignal(msg.env)

	case signalClosedMsg:
		m.connected = false
		m.lastError = "Signal connection closed"
		return m, nil

	case answerSentMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		} else {
			m.connected = true
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "l":
		m.showLists = !m.showLists
		return m, nil

	case "s":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyToggleSync})
	case "c":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyToggleCine})
	case "i":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyCineFaster})
	case "u":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyCineSlower})
	case "right":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyNextCase})
	case "left":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyPreviousCase})
	case "up":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyNextProtocol})
	case "down":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyPreviousProtocol})
	case "b":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyBitrateUp})
	case "v":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyBitrateDown})
	case "f":
		m.control.HandleEvent(viewctl.KeyPressed{Action: viewctl.KeyTogglePark})
	}
	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	m.control.HandleEvent(viewctl.ModifiersChanged{Ctrl: msg.Ctrl})

	px, py := m.pointerPosition(msg.X, msg.Y)
	m.control.HandleEvent(viewctl.PointerMoved{X: px, Y: py})

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.buttons.Left = true
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonLeft, Pressed: true})
		case tea.MouseButtonRight:
			m.buttons.Right = true
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonRight, Pressed: true})
		case tea.MouseButtonMiddle:
			m.buttons.Middle = true
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonMiddle, Pressed: true})
		case tea.MouseButtonWheelUp:
			m.control.HandleEvent(viewctl.WheelMoved{Delta: 1})
		case tea.MouseButtonWheelDown:
			m.control.HandleEvent(viewctl.WheelMoved{Delta: -1})
		}

	case tea.MouseActionRelease:
		// Some terminals do not report which button was released.
		// Release everything we know is down.
		if m.buttons.Left {
			m.buttons.Left = false
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonLeft, Pressed: false})
		}
		if m.buttons.Right {
			m.buttons.Right = false
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonRight, Pressed: false})
		}
		if m.buttons.Middle {
			m.buttons.Middle = false
			m.control.HandleEvent(viewctl.ButtonChanged{Button: viewctl.ButtonMiddle, Pressed: false})
		}
	}

	return m, nil
}

func (m model) handleSignal(env message.Envelope) (tea.Model, tea.Cmd) {
	switch env.Type {
	case "cases":
		m.control.SetCatalog(env.Protocols, env.Cases)
		m.control.SelectDefaultDisplay()
		m.haveCases = true
		return m, nil

	case "sdp":
		if env.SDPType != "offer" {
			log.Printf("Ignoring sdp message of type %q", env.SDPType)
			return m, nil
		}
		viewer, signal := m.viewer, m.signal
		sdp := env.SDP
		return m, func() tea.Msg {
			answer, err := viewer.HandleOffer(sdp)
			if err != nil {
				return answerSentMsg{err: err}
			}
			signal.SendAnswer(answer)
			return answerSentMsg{}
		}

	case "ice":
		if err := m.viewer.AddCandidate(env.Candidate, env.SDPMLineIndex); err != nil {
			log.Printf("Failed to add ICE candidate: %v", err)
		}
		return m, nil

	case "size":
		log.Printf("Track %q size %dx%d", env.TrackID, env.Width, env.Height)
		m.viewer.SetTrackSize(env.TrackID, env.Width, env.Height)
		return m, nil

	case "error":
		m.lastError = env.Error
		return m, nil

	case "close":
		return m, tea.Quit

	default:
		log.Printf("Unknown signal message type: %s", env.Type)
		return m, nil
	}
}

// updateRates derives per-second frame and bit rates from consecutive stats
// snapshots.
func (m *model) updateRates() {
	stats := m.viewer.Stats()
	rates := make([]trackRate, 0, len(stats))
	for _, st := range stats {
		prev := m.prevStats[st.TrackID]
		rates = append(rates, trackRate{
			trackID: st.TrackID,
			width:   st.Width,
			height:  st.Height,
			fps:     float64(st.Frames - prev.Frames),
			mbps:    float64(st.Bytes-prev.Bytes) * 8 / 1e6,
		})
		m.prevStats[st.TrackID] = st
	}
	m.rates = rates
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GoView"))
	b.WriteString(dimStyle.Render(" - Remote Image Viewer"))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	b.WriteString(m.renderBoards())

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m model) renderStatus() string {
	var b strings.Builder

	if m.connected {
		b.WriteString(selectedStyle.Render("[CONNECTED]"))
	} else {
		b.WriteString(dimStyle.Render("[CONNECTING]"))
	}
	b.WriteString("  ")

	b.WriteString(statusStyle.Render("Server: "))
	b.WriteString(normalStyle.Render(m.config.SignalURL))
	b.WriteString("  ")

	layout := m.control.Layout()
	b.WriteString(statusStyle.Render("Layout: "))
	b.WriteString(normalStyle.Render(fmt.Sprintf("%dx%d", layout.Width, layout.Height)))
	b.WriteString("  ")

	if protocol := m.control.CurrentProtocol(); protocol != "" {
		b.WriteString(statusStyle.Render("Protocol: "))
		b.WriteString(normalStyle.Render(protocol))
		b.WriteString("  ")
	}

	if m.control.Parked() {
		b.WriteString(selectedStyle.Render("[PARKED]"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m model) renderBoards() string {
	streamsBox := boxStyle.Width(38).Render(
		boxTitleStyle.Render(" Streams ") + "\n" + m.renderStreams(),
	)
	if !m.showLists {
		return streamsBox
	}

	casesBox := boxStyle.Width(26).Render(
		boxTitleStyle.Render(" Cases ") + "\n" + normalStyle.Render(m.control.CaseList()),
	)
	protocolsBox := boxStyle.Width(26).Render(
		boxTitleStyle.Render(" Protocols ") + "\n" + normalStyle.Render(m.control.ProtocolList()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, streamsBox, " ", casesBox, " ", protocolsBox)
}

func (m model) renderStreams() string {
	if len(m.rates) == 0 {
		if m.haveCases {
			return dimStyle.Render("Waiting for video...")
		}
		return dimStyle.Render("Waiting for catalog...")
	}

	var b strings.Builder
	for i, r := range m.rates {
		line := fmt.Sprintf("%s  %dx%d  %.0f fps  %.2f Mbit/s",
			r.trackID, r.width, r.height, r.fps, r.mbps)
		b.WriteString(normalStyle.Render(line))
		if i < len(m.rates)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) renderHelp() string {
	bindings := []struct {
		key  string
		desc string
	}{
		{"→/←", "case"},
		{"↑/↓", "protocol"},
		{"s", "sync"},
		{"c", "cine"},
		{"u/i", "cine speed"},
		{"v/b", "bitrate"},
		{"f", "park"},
		{"l", "lists"},
		{"q", "quit"},
	}

	parts := make([]string, 0, len(bindings))
	for _, bind := range bindings {
		parts = append(parts, keyStyle.Render(bind.key)+dimStyle.Render(" "+bind.desc))
	}
	return strings.Join(parts, keySepStyle.Render("  ·  "))
}

// RunViewer wires the control layer, the signaling connection, and the peer
// into the terminal UI and blocks until the user quits.
func RunViewer(config Config, control *viewctl.Control, signal *SignalClient, viewer *Viewer) error {
	tick := timer.New[tea.Msg](time.Second / interactionsPerSecond)
	defer tick.Stop()

	m := initialModel(config, control, signal, viewer, tick)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())

	tick.Repeat(interactTickMsg{}, time.Second/interactionsPerSecond)
	tick.Repeat(statsTickMsg{}, time.Second)
	go func() {
		for msg := range tick.C() {
			p.Send(msg)
		}
	}()

	go func() {
		for env := range signal.Messages() {
			p.Send(signalMsg{env: env})
		}
		p.Send(signalClosedMsg{})
	}()

	_, err := p.Run()
	return err
}
