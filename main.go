package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tomaslejdung/goview/pkg/message"
	"github.com/tomaslejdung/goview/pkg/schedule"
	"github.com/tomaslejdung/goview/pkg/viewctl"
)

// DefaultSignalServer is the default render server signaling endpoint
const DefaultSignalServer = "ws://localhost:9999/ws"

// Config holds runtime configuration
type Config struct {
	SignalURL    string
	Views        int
	Width        uint32
	Height       uint32
	CaseKey      string
	ProtocolKey  string
	BitrateScale float64
	Schedule     string
	Preset       string
	Lossless     bool
	GPU          bool
	FullRange    bool
	LogFile      string
	Help         bool
}

func parseFlags(defaults UserSettings) Config {
	config := Config{}
	var width, height uint

	flag.StringVar(&config.SignalURL, "url", DefaultSignalServer, "Render server signaling URL")
	flag.StringVar(&config.SignalURL, "u", DefaultSignalServer, "Render server signaling URL (shorthand)")

	flag.IntVar(&config.Views, "views", defaults.Views, "Number of video streams to request")
	flag.UintVar(&width, "width", uint(defaults.Width), "Layout width in pixels")
	flag.UintVar(&height, "height", uint(defaults.Height), "Layout height in pixels")

	flag.StringVar(&config.CaseKey, "case", "", "Case key to select at startup")
	flag.StringVar(&config.ProtocolKey, "protocol", "", "Protocol name to select at startup")

	flag.Float64Var(&config.BitrateScale, "bitrate-scale", float64(defaults.BitrateScale), "Bitrate multiplier")
	flag.StringVar(&config.Schedule, "schedule", defaults.Schedule, "Bitrate schedule (default|performance|quality)")
	flag.StringVar(&config.Preset, "preset", defaults.Preset, "Server encoder preset")
	flag.BoolVar(&config.Lossless, "lossless", defaults.Lossless, "Request lossless encoding")
	flag.BoolVar(&config.GPU, "gpu", defaults.GPU, "Request GPU encoding")
	flag.BoolVar(&config.FullRange, "fullrange", defaults.FullRange, "Request full range color")

	flag.StringVar(&config.LogFile, "log", "", "Write logs to this file instead of stderr")

	flag.BoolVar(&config.Help, "help", false, "Show help")
	flag.BoolVar(&config.Help, "h", false, "Show help (shorthand)")

	flag.Parse()

	config.Width = uint32(width)
	config.Height = uint32(height)
	return config
}

func printHelp() {
	fmt.Println(`GoView - Remote Medical Image Viewer

Usage: goview [options]

Connects to a render server, requests one video stream per view, and drives
pan/zoom/scroll/window-level interactions from the terminal.

Options:
  --url, -u <url>        Render server signaling URL (default: ` + DefaultSignalServer + `)
  --views <n>            Number of video streams to request
  --width <px>           Layout width in pixels
  --height <px>          Layout height in pixels
  --case <key>           Case key to select at startup
  --protocol <name>      Protocol to select at startup
  --bitrate-scale <f>    Bitrate multiplier (min 0.1)
  --schedule <name>      Bitrate schedule: default, performance, quality
  --preset <name>        Server encoder preset
  --lossless             Request lossless encoding (bitrate schedule ignored)
  --gpu                  Request GPU encoding
  --fullrange            Request full range color
  --log <file>           Write logs to this file instead of stderr
  --help, -h             Show help

Controls:
  Mouse drag             Pan (left), zoom (ctrl+left), window/level (middle),
                         variate (ctrl+middle), fast scroll (left+right)
  Wheel                  Scroll frames
  Double click           Park focused pane full screen / restore
  → / ←                  Next / previous case
  ↑ / ↓                  Next / previous protocol
  s                      Toggle scroll sync for the hovered pane
  c                      Toggle cine playback
  u / i                  Cine slower / faster
  v / b                  Bitrate down / up
  f                      Park / restore
  l                      Toggle case and protocol lists
  q                      Quit`)
}

func main() {
	settingsManager, err := NewSettingsManager()
	if err != nil {
		log.Fatalf("Failed to locate settings: %v", err)
	}
	settings, err := settingsManager.Load()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
	}

	config := parseFlags(settings)

	if config.Help {
		printHelp()
		return
	}

	// The TUI owns the terminal; logs go to a file or nowhere.
	if config.LogFile != "" {
		f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	settings.Views = config.Views
	settings.Width = config.Width
	settings.Height = config.Height
	settings.BitrateScale = float32(config.BitrateScale)
	settings.Schedule = schedule.Parse(config.Schedule).String()
	settings.Preset = config.Preset
	settings.Lossless = config.Lossless
	settings.GPU = config.GPU
	settings.FullRange = config.FullRange
	if err := settingsManager.Save(settings); err != nil {
		log.Printf("Failed to save settings: %v", err)
	}

	sched := schedule.Parse(config.Schedule)
	control := viewctl.NewControl(viewctl.Config{
		Views:        config.Views,
		BitrateScale: float32(config.BitrateScale),
		GPU:          config.GPU,
		Preset:       config.Preset,
		Lossless:     config.Lossless,
		VideoScaling: sched.Scaling(schedule.ViewportArea{Width: config.Width, Height: config.Height}),
		FullRange:    config.FullRange,
		CaseKey:      config.CaseKey,
		ProtocolKey:  config.ProtocolKey,
		Schedule:     sched,
	})
	control.SetLayout(message.LayoutRect{Width: config.Width, Height: config.Height})

	signal, err := NewSignalClient(config.SignalURL)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to connect: %v", err)
	}
	defer signal.Close()

	viewer, err := NewViewer(
		config.Views,
		control.PushSample,
		control.SetDataChannel,
		signal.SendCandidate,
	)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Failed to create peer: %v", err)
	}
	defer viewer.Close()

	signal.Connect(control.ClientConfigs())
	signal.RequestCases()

	if err := RunViewer(config, control, signal, viewer); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("Viewer error: %v", err)
	}
}
