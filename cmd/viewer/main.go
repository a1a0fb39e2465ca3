package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"match-chat/auth"
	"match-chat/domain/event"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL string `env:"VIEWER_SERVER_URL,default=ws://localhost:8080/ws"`
	UserID    string `env:"VIEWER_USER_ID,required=true"`
	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISSUER,default=match-chat"`
	ChatID    string `env:"VIEWER_CHAT_ID"`
}

// The viewer is a terminal client of the realtime channel. Plain lines are sent
// to the current chat; "/chat <id>", "/read <id>...", "/typing" and "/quit" are commands.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatalf("No .env file found: %v", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	token, err := auth.NewTokenService(config.JWTSecret, config.JWTIssuer).Generate(config.UserID, 12*time.Hour)
	if err != nil {
		log.Fatalf("Token error: %v", err)
	}
	target, err := url.Parse(config.ServerURL)
	if err != nil {
		log.Fatalf("Invalid server url: %v", err)
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		log.Fatalf("Dial %s: %v", config.ServerURL, err)
	}
	defer conn.Close()
	color.Green.Printf("Connected to %s as %s\n", config.ServerURL, config.UserID)

	go readLoop(conn, config.UserID)

	v := viewer{conn: conn, chatID: config.ChatID}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if !v.handleLine(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

type viewer struct {
	conn   *websocket.Conn
	chatID string
	seq    atomic.Int64
}

func (v *viewer) handleLine(line string) bool {
	if line == "" {
		return true
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		return false
	case "/chat":
		if len(fields) != 2 {
			color.Red.Println("usage: /chat <chatId>")
			return true
		}
		v.chatID = fields[1]
		v.send(event.JoinChat, event.ChatPayload{ChatID: v.chatID})
	case "/read":
		v.send(event.MarkAsRead, event.MarkAsReadPayload{ChatID: v.chatID, MessageIDs: fields[1:]})
	case "/typing":
		v.send(event.Typing, event.TypingPayload{ChatID: v.chatID, IsTyping: true})
	default:
		if v.chatID == "" {
			color.Red.Println("pick a chat first: /chat <chatId>")
			return true
		}
		v.send(event.SendMessage, event.SendMessagePayload{ChatID: v.chatID, Content: line, Type: "text"})
	}
	return true
}

func (v *viewer) send(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		color.Red.Printf("encode %s: %v\n", name, err)
		return
	}
	frame := event.Frame{ID: fmt.Sprintf("%d", v.seq.Add(1)), Event: name, Data: data}
	if err := v.conn.WriteJSON(frame); err != nil {
		color.Red.Printf("send %s: %v\n", name, err)
	}
}

func readLoop(conn *websocket.Conn, me string) {
	for {
		var frame event.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			color.Yellow.Printf("Connection closed: %v\n", err)
			os.Exit(0)
		}
		render(frame, me)
	}
}

func render(frame event.Frame, me string) {
	ts := time.Now().Format("15:04:05")
	switch frame.Event {
	case string(event.NewMessageType):
		var evt event.MessageCreated
		if json.Unmarshal(frame.Data, &evt) != nil {
			break
		}
		who := color.Cyan.Render(evt.Message.SenderID)
		if evt.Message.SenderID == me {
			who = color.Green.Render("me")
		}
		fmt.Printf("%s %s: %s %s\n", ts, who, evt.Message.Content, color.Gray.Render("("+evt.Message.ID+")"))
		return
	case string(event.UserTypingType):
		var evt event.UserTyping
		if json.Unmarshal(frame.Data, &evt) == nil && evt.IsTyping {
			color.Gray.Printf("%s %s is typing...\n", ts, evt.UserID)
		}
		return
	case string(event.UserStatusChangeType):
		var evt event.UserStatusChanged
		if json.Unmarshal(frame.Data, &evt) == nil {
			color.Magenta.Printf("%s %s is %s\n", ts, evt.UserID, evt.Status)
		}
		return
	case event.Error:
		color.Red.Printf("%s error: %s\n", ts, string(frame.Data))
		return
	}
	color.Gray.Printf("%s [%s] %s\n", ts, frame.Event, string(frame.Data))
}
