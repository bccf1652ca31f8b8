package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomaslejdung/goview/pkg/message"
)

// SignalClient is the WebSocket connection to the render server's signaling
// endpoint. Outgoing messages go through a buffered send channel so callers
// never block on the socket; incoming messages are delivered on Messages.
type SignalClient struct {
	conn     *websocket.Conn
	send     chan []byte
	messages chan message.Envelope
	done     chan struct{}
}

// normalizeSignalURL rewrites http(s) schemes to ws(s) and defaults bare
// hosts to ws.
func normalizeSignalURL(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return "ws://" + url
	}
	return url
}

// NewSignalClient dials the signaling endpoint and starts the pumps.
func NewSignalClient(url string) (*SignalClient, error) {
	wsURL := normalizeSignalURL(url)

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signal server: %v", err)
	}
	log.Printf("Connected to signal server %s", wsURL)

	c := &SignalClient{
		conn:     conn,
		send:     make(chan []byte, 256),
		messages: make(chan message.Envelope, 64),
		done:     make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// readPump reads envelopes off the socket until it closes.
func (c *SignalClient) readPump() {
	defer func() {
		close(c.messages)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var env message.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Invalid signal message: %v", err)
			continue
		}

		select {
		case c.messages <- env:
		case <-c.done:
			return
		}
	}
}

// writePump drains the send channel onto the socket.
func (c *SignalClient) writePump() {
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Messages returns the incoming envelope stream. The channel closes when the
// connection drops.
func (c *SignalClient) Messages() <-chan message.Envelope {
	return c.messages
}

func (c *SignalClient) write(env message.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to serialize signal message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Signal send buffer full, dropping %s", env.Type)
	}
}

// Connect requests one stream per config. The server answers with an SDP
// offer carrying the video tracks and data channels.
func (c *SignalClient) Connect(configs []message.ClientConfig) {
	c.write(message.Envelope{Type: "connect", Configs: configs})
}

// RequestCases asks for the case and protocol catalogs.
func (c *SignalClient) RequestCases() {
	c.write(message.Envelope{Type: "getcases"})
}

// SendAnswer returns the local SDP answer to the server's offer.
func (c *SignalClient) SendAnswer(sdp string) {
	c.write(message.Envelope{Type: "sdp", SDPType: "answer", SDP: sdp})
}

// SendCandidate forwards a local ICE candidate.
func (c *SignalClient) SendCandidate(candidate string, sdpMLineIndex uint16) {
	c.write(message.Envelope{Type: "ice", Candidate: candidate, SDPMLineIndex: sdpMLineIndex})
}

// Close tears the connection down.
func (c *SignalClient) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.conn.Close()
}
