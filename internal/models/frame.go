package models

// Frame types exchanged over the websocket.
const (
	FrameJoin      = "join"
	FrameLeave     = "leave"
	FrameMessage   = "message"
	FrameJoined    = "joined"
	FrameLeft      = "left"
	FrameConnected = "connected"
	FrameError     = "error"
)

// Frame is the JSON envelope for every websocket message in both directions.
type Frame struct {
	Type     string         `json:"type"`
	Room     string         `json:"room,omitempty"`
	SenderID ParticipantID  `json:"sender_id,omitempty"`
	Message  *MessageRecord `json:"message,omitempty"`
	Code     string         `json:"code,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// PushEvent is an inbound message delivered to a joined room.
type PushEvent struct {
	Room     string
	SenderID ParticipantID
	Message  MessageRecord
}

// Error frame codes.
const (
	CodeBadRequest  = "bad_request"
	CodeForbidden   = "forbidden"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal_error"
)

// ErrorFrame builds an error frame for room.
func ErrorFrame(code, room, msg string) Frame {
	return Frame{Type: FrameError, Room: room, Code: code, Error: msg}
}
