package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config describes the remote-access agent connection.
type Config struct {
	// RelayWS is the cloud relay endpoint, e.g. wss://host/agent.
	RelayWS string
	// LocalURL is the hub's own control surface, e.g. http://127.0.0.1:4000.
	LocalURL string
	// HubID identifies this hub to the relay.
	HubID      string
	RetryDelay time.Duration
}

type requestMsg struct {
	Type   string `json:"type"`
	ReqID  string `json:"reqId"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   any    `json:"body"`
}

type responseMsg struct {
	Type   string `json:"type"`
	ReqID  string `json:"reqId"`
	Status int    `json:"status"`
	Body   any    `json:"body"`
}

// Start runs the agent loop: dial the relay, register the hub, forward
// relayed requests to the local control surface, reconnect on any error.
// It never returns; run it in its own goroutine.
func Start(cfg Config) {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	for {
		run(cfg)
		log.Println("BRIDGE: disconnected from relay, reconnecting")
		time.Sleep(cfg.RetryDelay)
	}
}

func run(cfg Config) {
	ws, _, err := websocket.DefaultDialer.Dial(cfg.RelayWS, nil)
	if err != nil {
		log.Printf("BRIDGE: relay dial failed: %v", err)
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]any{"type": "register", "id": cfg.HubID}); err != nil {
		log.Printf("BRIDGE: registration failed: %v", err)
		return
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var req requestMsg
		if err := json.Unmarshal(msg, &req); err != nil || req.Type != "request" {
			continue
		}

		body, status := doLocalRequest(cfg.LocalURL, req)
		if err := ws.WriteJSON(responseMsg{
			Type:   "response",
			ReqID:  req.ReqID,
			Status: status,
			Body:   body,
		}); err != nil {
			return
		}
	}
}

// doLocalRequest replays a relayed request against the local control
// surface and returns the parsed response body and status.
func doLocalRequest(base string, req requestMsg) (any, int) {
	bodyBytes, err := json.Marshal(req.Body)
	if err != nil {
		return "invalid relayed body", http.StatusBadRequest
	}

	httpReq, err := http.NewRequest(req.Method, base+req.Path, bytes.NewReader(bodyBytes))
	if err != nil {
		return "invalid relayed request", http.StatusBadRequest
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "local request failed", http.StatusInternalServerError
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed any
	json.Unmarshal(raw, &parsed)
	return parsed, resp.StatusCode
}
