package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"RELAY_SERVER_ADDR,default=localhost:8080"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ownerToken, err := fetchOwnerToken(config.ServerAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not fetch owner token: %w", err)
	}

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+config.ServerAddress+"/ws", nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.ServerAddress, err)
	}
	defer ws.Close()

	color.Cyan.Println("Connected. Commands: /create [id] | /join <id> <name> | /prompt <text> | /answer <text> | /feedback <name> <text> | /leave | /close | /quit")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				return
			}
			printEvent(frame)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			color.Red.Println("Disconnected by the relay")
			return exitOK, nil
		default:
		}
		frame, quit := toFrame(scanner.Text(), ownerToken)
		if quit {
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return exitOK, nil
		}
		if frame == nil {
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return exitRuntime, fmt.Errorf("write failed: %w", err)
		}
	}
	return exitOK, scanner.Err()
}

func fetchOwnerToken(addr string) (string, error) {
	resp, err := http.Get("http://" + addr + "/token")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body["ownerToken"], nil
}

// toFrame translates one input line into a wire frame.
// The second return requests a clean shutdown.
func toFrame(line, ownerToken string) ([]byte, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, false
	}

	msg := map[string]any{}
	switch fields[0] {
	case "/quit":
		return nil, true
	case "/create":
		msg["tag"] = "create"
		msg["ownerToken"] = ownerToken
		if len(fields) > 1 {
			msg["sessionId"] = fields[1]
		}
	case "/join":
		if len(fields) < 3 {
			color.Yellow.Println("usage: /join <id> <name>")
			return nil, false
		}
		msg["tag"] = "join"
		msg["sessionId"] = fields[1]
		msg["name"] = strings.Join(fields[2:], " ")
		msg["ownerToken"] = ownerToken
	case "/prompt":
		msg["tag"] = "setPrompt"
		msg["text"] = strings.Join(fields[1:], " ")
	case "/answer":
		msg["tag"] = "answer"
		msg["payload"] = strings.Join(fields[1:], " ")
	case "/feedback":
		if len(fields) < 3 {
			color.Yellow.Println("usage: /feedback <name> <text>")
			return nil, false
		}
		msg["tag"] = "feedback"
		msg["to"] = fields[1]
		msg["text"] = strings.Join(fields[2:], " ")
	case "/leave":
		msg["tag"] = "leave"
	case "/close":
		msg["tag"] = "close"
	default:
		color.Yellow.Printf("unknown command: %s\n", fields[0])
		return nil, false
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return frame, false
}

func printEvent(frame []byte) {
	var evt map[string]any
	if err := json.Unmarshal(frame, &evt); err != nil {
		return
	}
	tag, _ := evt["tag"].(string)

	switch tag {
	case "created":
		color.Green.Printf("Session created: %v\n", evt["sessionId"])
	case "joined":
		color.Green.Printf("Joined %v as %v\n", evt["sessionId"], evt["name"])
		if prompt, _ := evt["prompt"].(string); prompt != "" {
			color.Cyan.Printf("Prompt: %s\n", prompt)
		}
	case "memberList":
		printMembers(evt)
	case "memberJoined":
		color.Green.Printf("%v joined\n", evt["name"])
	case "memberLeft":
		color.Yellow.Printf("%v left\n", evt["name"])
	case "promptUpdate":
		color.Cyan.Printf("Prompt: %v\n", evt["text"])
	case "answerReceived":
		color.Magenta.Printf("Answer from %v: %v\n", evt["name"], evt["payload"])
	case "feedback":
		color.Magenta.Printf("Feedback: %v\n", evt["text"])
	case "sessionClosed":
		color.Red.Println("Session closed by the host")
	case "error":
		color.Red.Printf("Error: %v\n", evt["message"])
	default:
		fmt.Println(string(frame))
	}
}

func printMembers(evt map[string]any) {
	raw, _ := evt["members"].([]any)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Member"})
	for i, m := range raw {
		table.Append([]string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%v", m)})
	}
	table.Render()
}
