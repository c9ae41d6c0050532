// Mock control bridge for local development. Speaks just enough of the
// bridge protocol to exercise the gateway end to end:
//
//	go run test/mock_bridge.go --addr :8090
//	roomlink status --probe   (with bridge_url: ws://localhost:8090/bridge)
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Message matches the bridge envelope
type Message struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8090", "Listen address")
	path := flag.String("path", "/bridge", "WebSocket path")
	flag.Parse()

	http.HandleFunc(*path, handleConnection)

	log.Printf("🌉 Mock bridge listening on ws://localhost%s%s", *addr, *path)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("🔌 Client connected from %s", conn.RemoteAddr())

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("👋 Client gone: %v", err)
			return
		}
		handleMessage(conn, msg)
	}
}

func handleMessage(conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case "identify":
		log.Printf("🪪 identify from %v", msg.Payload["deviceName"])
		send(conn, "identify:success", map[string]interface{}{
			"socketId":   fmt.Sprintf("mock-%d", time.Now().UnixNano()),
			"clientId":   "mock-client",
			"serverTime": time.Now().UnixMilli(),
			"connectionInfo": map[string]interface{}{
				"transport": "websocket",
				"address":   conn.RemoteAddr().String(),
			},
		})
		// The real bridge announces its component tree shortly after.
		send(conn, "digitaltwin:ready", map[string]interface{}{
			"controllers":     1,
			"totalComponents": len(mockComponents()),
		})
		send(conn, "system:ready", map[string]interface{}{})

	case "controller:subscribe":
		log.Printf("📡 controller subscribe: %v", msg.Payload["controllerId"])
		send(conn, "controller:state", map[string]interface{}{
			"components": mockComponents(),
		})

	case "component:subscribe":
		id, _ := msg.Payload["componentId"].(string)
		log.Printf("📡 component subscribe: %s", id)
		for _, comp := range mockComponents() {
			if comp["id"] == id {
				send(conn, "component:state", map[string]interface{}{"component": comp})
				return
			}
		}
		send(conn, "component:state", map[string]interface{}{
			"component": map[string]interface{}{"id": id, "name": id, "controls": []interface{}{}},
		})

	case "control:subscribe":
		ctlID, _ := msg.Payload["controlId"].(string)
		log.Printf("📡 control subscribe: %s", ctlID)
		send(conn, "control:update", map[string]interface{}{
			"controlId": ctlID,
			"control":   map[string]interface{}{"id": ctlID, "type": "state", "value": true},
		})

	case "control:set":
		ctlID, _ := msg.Payload["controlId"].(string)
		txID, _ := msg.Payload["transactionId"].(string)
		log.Printf("🎛️  control:set %s = %v (tx %s)", ctlID, msg.Payload["value"], txID)
		if ctlID == "RejectMe" {
			send(conn, "control:set:error", map[string]interface{}{
				"transactionId": txID,
				"message":       "control is locked out",
			})
			return
		}
		send(conn, "control:set:success", map[string]interface{}{
			"transactionId": txID,
		})
		// Echo the new value back as a state delta, like the real bridge.
		send(conn, "control:update", map[string]interface{}{
			"controlId": ctlID,
			"control":   map[string]interface{}{"id": ctlID, "type": "state", "value": msg.Payload["value"]},
		})

	case "ping":
		send(conn, "pong", map[string]interface{}{
			"clientTimestamp": msg.Payload["timestamp"],
		})

	default:
		log.Printf("❓ Unhandled message type: %s", msg.Type)
	}
}

func send(conn *websocket.Conn, typ string, payload map[string]interface{}) {
	if err := conn.WriteJSON(Message{Type: typ, Payload: payload}); err != nil {
		log.Printf("❌ Write failed: %v", err)
	}
}

func mockComponents() []map[string]interface{} {
	sources, _ := json.Marshal([]string{"laptop-1", "apple-tv"})
	return []map[string]interface{}{
		{
			"id":   "display:main",
			"name": "Main Display",
			"controls": []interface{}{
				map[string]interface{}{"id": "PowerState", "type": "state", "value": true},
				map[string]interface{}{"id": "Volume", "type": "level", "value": 40},
				map[string]interface{}{"id": "MuteState", "type": "state", "value": false},
				map[string]interface{}{"id": "ConnectedSources", "type": "text", "string": string(sources)},
			},
		},
		{
			"id":   "decoder:av1",
			"name": "AV Decoder",
			"controls": []interface{}{
				map[string]interface{}{"id": "ActiveInput", "type": "select", "string": "hdmi1"},
			},
		},
		{
			"id":   "lighting:zone-a",
			"name": "Lighting Zone A",
			"controls": []interface{}{
				map[string]interface{}{"id": "LightLevel", "type": "level", "value": 80},
				map[string]interface{}{"id": "ScenePreset", "type": "select", "string": "presentation"},
			},
		},
	}
}
