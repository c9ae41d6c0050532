package wire

import "encoding/json"

// IdentifyRequest carries client metadata for the handshake.
type IdentifyRequest struct {
	Platform    string `json:"platform"`
	Device      string `json:"device"`
	OSVersion   string `json:"osVersion"`
	AppVersion  string `json:"appVersion"`
	BuildNumber string `json:"buildNumber"`
	DeviceName  string `json:"deviceName"`
}

func mustEnvelope(typ string, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		// All payload types here are plain structs of marshalable
		// fields; a failure is a programming error.
		panic(err)
	}
	return Envelope{Type: typ, Payload: raw}
}

// Identify builds the handshake request.
func Identify(req IdentifyRequest) Envelope {
	return mustEnvelope(TypeIdentify, req)
}

// SubscribeController requests the full component snapshot for a
// controller and a standing subscription to its updates.
func SubscribeController(controllerID string) Envelope {
	return mustEnvelope(TypeControllerSubscribe, map[string]string{
		"controllerId": controllerID,
	})
}

// SubscribeComponent requests updates for one component.
func SubscribeComponent(controllerID, componentID string) Envelope {
	return mustEnvelope(TypeComponentSubscribe, map[string]string{
		"controllerId": controllerID,
		"componentId":  componentID,
	})
}

// SubscribeControl requests updates for a single control.
func SubscribeControl(controllerID, componentID, controlID string) Envelope {
	return mustEnvelope(TypeControlSubscribe, map[string]string{
		"controllerId": controllerID,
		"componentId":  componentID,
		"controlId":    controlID,
	})
}

// SetControl builds a control:set command correlated by transactionID.
func SetControl(controllerID, componentID, controlID string, value any, transactionID string) Envelope {
	return mustEnvelope(TypeControlSet, map[string]any{
		"controllerId":  controllerID,
		"componentId":   componentID,
		"controlId":     controlID,
		"value":         value,
		"transactionId": transactionID,
	})
}

// Ping builds a keep-alive carrying the client clock in unix millis.
func Ping(timestamp int64) Envelope {
	return mustEnvelope(TypePing, map[string]int64{
		"timestamp": timestamp,
	})
}
