// Package wire defines the JSON protocol spoken with the bridge: a
// type-tagged envelope carrying one payload per event type. Inbound
// payloads are decoded into a closed set of Go types at the connection
// boundary; unknown event types are rejected there instead of leaking
// raw maps into the rest of the client.
package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope is the on-the-wire shape of every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound event types.
const (
	TypeIdentify            = "identify"
	TypeControllerSubscribe = "controller:subscribe"
	TypeComponentSubscribe  = "component:subscribe"
	TypeControlSubscribe    = "control:subscribe"
	TypeControlSet          = "control:set"
	TypePing                = "ping"
)

// Inbound event types.
const (
	TypeIdentifySuccess   = "identify:success"
	TypeControllerState   = "controller:state"
	TypeComponentState    = "component:state"
	TypeControlUpdate     = "control:update"
	TypeControlSetSuccess = "control:set:success"
	TypeControlSetError   = "control:set:error"
	TypePong              = "pong"
	TypeSystemReady       = "system:ready"
	TypeDigitalTwinReady  = "digitaltwin:ready"
)

// ControlInfo describes a single addressable control on a component.
// Value is left raw because control types vary (bool, float, string,
// JSON blobs); callers decode what they recognize.
type ControlInfo struct {
	ID       string          `json:"id"`
	Type     string          `json:"type,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	String   string          `json:"string,omitempty"`
	Position float64         `json:"position,omitempty"`
}

// Component is a discoverable control surface on the bridge.
type Component struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Controls []ControlInfo `json:"controls,omitempty"`
}

// ConnectionInfo is reported by the bridge during identification.
type ConnectionInfo struct {
	Transport string `json:"transport,omitempty"`
	Address   string `json:"address,omitempty"`
}

// IdentifySuccess acknowledges the identify handshake.
type IdentifySuccess struct {
	SocketID   string         `json:"socketId"`
	ClientID   string         `json:"clientId"`
	ServerTime int64          `json:"serverTime"` // unix millis
	Connection ConnectionInfo `json:"connectionInfo"`
}

// ControllerState is the authoritative discovery snapshot.
type ControllerState struct {
	Components []Component `json:"components"`
}

// ComponentState is a full per-component state snapshot.
type ComponentState struct {
	Component Component `json:"component"`
}

// ControlUpdate is a single-control delta.
type ControlUpdate struct {
	ControlID string      `json:"controlId"`
	Control   ControlInfo `json:"control"`
}

// ControlSetSuccess acknowledges a control:set command.
type ControlSetSuccess struct {
	TransactionID string `json:"transactionId"`
}

// ControlSetError reports a rejected control:set command.
type ControlSetError struct {
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// Pong answers a ping, echoing the client timestamp for RTT measurement.
type Pong struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// SystemReady is the out-of-band signal that the bridge has finished
// booting its component tree.
type SystemReady struct{}

// DigitalTwinReady reports the size of the bridge's component model.
type DigitalTwinReady struct {
	Controllers     int `json:"controllers"`
	TotalComponents int `json:"totalComponents"`
}

// ErrUnknownType is returned by Decode for event types outside the
// closed inbound set.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// Decode maps an inbound envelope onto its payload type. The returned
// value is one of the inbound structs above (by pointer).
func Decode(env Envelope) (any, error) {
	var target any
	switch env.Type {
	case TypeIdentifySuccess:
		target = &IdentifySuccess{}
	case TypeControllerState:
		target = &ControllerState{}
	case TypeComponentState:
		target = &ComponentState{}
	case TypeControlUpdate:
		target = &ControlUpdate{}
	case TypeControlSetSuccess:
		target = &ControlSetSuccess{}
	case TypeControlSetError:
		target = &ControlSetError{}
	case TypePong:
		target = &Pong{}
	case TypeSystemReady:
		return &SystemReady{}, nil
	case TypeDigitalTwinReady:
		target = &DigitalTwinReady{}
	default:
		return nil, &ErrUnknownType{Type: env.Type}
	}

	if len(env.Payload) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return target, nil
}
