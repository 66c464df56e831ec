package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"ai-research-be/internal/protocol"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
)

const (
	baseURL      = "http://localhost:3000"
	wsURL        = "ws://localhost:3000"
	responseWait = 10 * time.Minute
)

var (
	info    = color.New(color.FgCyan)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

// Simplified DTOs for the script
type createSessionResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func main() {
	topic := flag.String("topic", "transformer architectures for time series forecasting", "research topic")
	formats := flag.String("formats", "pdf", "comma separated document formats")
	flag.Parse()

	fmt.Println("=== Research Pipeline Simulation Client ===")

	sessionID, err := createSession(*topic)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	success.Printf("Session Created: %s\n", sessionID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/research/"+sessionID, nil)
	if err != nil {
		log.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	responses := make(chan *protocol.Envelope)
	go readLoop(conn, responses)

	// Scenario: full pipeline from topic to documents.
	res := call(conn, responses, "research.start", map[string]interface{}{
		"sessionId": sessionID,
		"topic":     *topic,
	})
	printResult("research.start", res)

	res = call(conn, responses, "research.clarify", map[string]interface{}{
		"sessionId": sessionID,
		"answers":   []string{"Focus on long-horizon forecasting benchmarks."},
	})
	printResult("research.clarify", res)

	res = call(conn, responses, "research.clarify", map[string]interface{}{
		"sessionId": sessionID,
		"answers":   []string{"Target practitioners, include reproducible baselines."},
	})
	printResult("research.clarify", res)

	// Background research publishes research.completed when it finishes;
	// the read loop prints it. Poll status until the stage settles.
	waitForStage(conn, responses, sessionID, "research")

	res = call(conn, responses, "research.approve", map[string]interface{}{
		"sessionId": sessionID,
		"approved":  true,
	})
	printResult("research.approve", res)

	res = call(conn, responses, "development.start", map[string]interface{}{
		"sessionId": sessionID,
		"language":  "python",
	})
	printResult("development.start", res)

	res = call(conn, responses, "testing.run", map[string]interface{}{
		"sessionId": sessionID,
	})
	printResult("testing.run", res)

	res = call(conn, responses, "documentation.generate", map[string]interface{}{
		"sessionId": sessionID,
		"formats":   strings.Split(*formats, ","),
	})
	printResult("documentation.generate", res)

	success.Println("Scenario complete.")
}

func createSession(topic string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"topic": topic})
	resp, err := http.Post(baseURL+"/api/session/v1", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var res createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}
	return res.Data.ID, nil
}

// readLoop forwards responses to the caller and prints notifications inline.
func readLoop(conn *websocket.Conn, responses chan<- *protocol.Envelope) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			close(responses)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			warn.Printf("Undecodable frame: %v\n", err)
			continue
		}

		if env.Kind == protocol.KindNotification {
			info.Printf("  >> %s: %s\n", env.Method, string(env.Params))
			continue
		}
		responses <- &env
	}
}

func call(conn *websocket.Conn, responses <-chan *protocol.Envelope, method string, params interface{}) *protocol.Envelope {
	req, err := protocol.NewRequest(method, params)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}

	data, _ := json.Marshal(req)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Fatalf("Failed to send %s: %v", method, err)
	}

	timeout := time.After(responseWait)
	for {
		select {
		case env, ok := <-responses:
			if !ok {
				log.Fatalf("Connection closed waiting for %s", method)
			}
			if env.ID == req.ID {
				return env
			}
			warn.Printf("Uncorrelated response %s dropped\n", env.ID)
		case <-timeout:
			log.Fatalf("Timed out waiting for %s", method)
		}
	}
}

func printResult(method string, env *protocol.Envelope) {
	if env.Error != nil {
		failure.Printf("%s failed [%d]: %s\n", method, env.Error.Code, env.Error.Message)
		return
	}
	pretty, _ := json.MarshalIndent(env.Result, "", "  ")
	success.Printf("%s ok:\n%s\n", method, string(pretty))
}

// waitForStage polls workflow.status until the stage completes or fails.
func waitForStage(conn *websocket.Conn, responses <-chan *protocol.Envelope, sessionID, stage string) {
	for {
		time.Sleep(2 * time.Second)
		res := call(conn, responses, "workflow.status", map[string]interface{}{
			"sessionId": sessionID,
		})
		if res.Error != nil {
			failure.Printf("workflow.status failed: %s\n", res.Error.Message)
			return
		}

		var status struct {
			Stages map[string]struct {
				Status   string `json:"status"`
				Progress int    `json:"progress"`
			} `json:"stages"`
		}
		raw, _ := json.Marshal(res.Result)
		if err := json.Unmarshal(raw, &status); err != nil {
			continue
		}

		s, ok := status.Stages[stage]
		if !ok {
			continue
		}
		info.Printf("  %s: %s (%d%%)\n", stage, s.Status, s.Progress)
		if s.Status == "completed" || s.Status == "failed" {
			return
		}
	}
}
