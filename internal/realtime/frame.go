package realtime

import (
	"encoding/json"

	"github.com/hitoshi/friendline/internal/notify"
)

// フレーム種別
const (
	frameRegister     = "register"
	framePing         = "ping"
	framePong         = "pong"
	frameRegistered   = "registered"
	frameNotification = "notification"
	frameError        = "error"
)

// clientFrame はクライアントから受け取るフレーム。
// registerのuserIdは省略可能で、省略時は認証済みのユーザーIDを使う。
type clientFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// serverFrame はクライアントへ送るフレーム。
type serverFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type registeredPayload struct {
	UserID string `json:"userId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeNotification(msg notify.Message) ([]byte, error) {
	return json.Marshal(serverFrame{Type: frameNotification, Payload: msg})
}

func encodeRegistered(userID string) []byte {
	b, _ := json.Marshal(serverFrame{Type: frameRegistered, Payload: registeredPayload{UserID: userID}})
	return b
}

func encodePong() []byte {
	b, _ := json.Marshal(serverFrame{Type: framePong})
	return b
}

func encodeError(message string) []byte {
	b, _ := json.Marshal(serverFrame{Type: frameError, Payload: errorPayload{Message: message}})
	return b
}
