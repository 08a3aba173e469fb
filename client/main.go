package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateBattle = 101
	MsgTypeJoinBattle   = 102
	MsgTypeStartBattle  = 201
	MsgTypeSetPrompt    = 202
	MsgTypeSubmitPrompt = 203
	MsgTypeResetBattle  = 204
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	// 启动后直接开一个房间, 用 join CODE 加入别人的
	log.Println("Sending Create Battle request...")
	if err := send(c, MsgTypeCreateBattle, []byte(`{"theme":"test battle"}`)); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: join <code> | start | prompt <text> | submit | reset")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			cmd, arg, _ := strings.Cut(text, " ")
			var sendErr error
			switch cmd {
			case "join":
				payload, _ := json.Marshal(map[string]string{"code": strings.ToUpper(arg)})
				sendErr = send(c, MsgTypeJoinBattle, payload)
			case "start":
				sendErr = send(c, MsgTypeStartBattle, []byte{})
			case "prompt":
				payload, _ := json.Marshal(map[string]string{"text": arg})
				sendErr = send(c, MsgTypeSetPrompt, payload)
			case "submit":
				sendErr = send(c, MsgTypeSubmitPrompt, []byte{})
			case "reset":
				sendErr = send(c, MsgTypeResetBattle, []byte{})
			default:
				log.Printf("Unknown command: %s", cmd)
				continue
			}
			if sendErr != nil {
				log.Println("Write error:", sendErr)
				return
			}
			log.Printf("-> SENT: %s", cmd)
		}
	}
}
