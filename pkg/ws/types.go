package ws

// Message types exchanged with control surface websocket clients
const (
	TypeState  = "state"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeChat   = "chat"
	TypeAction = "action"
	TypeError  = "error"
)

// Message is the envelope for every websocket frame
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// InboundMessage is a client frame whose content is decoded per type
type InboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
