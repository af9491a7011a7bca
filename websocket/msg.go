package websocket

import (
	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	MsgTypeCamera  = "camera"
	MsgTypeVisible = "visible"
	MsgTypeError   = "error"

	ErrTypeMsgSkip    = "msg_skip"
	ErrTypeInvalidMsg = "invalid_msg"
)

// Msg is a message exchanged on a stream connection.
type Msg struct {
	Type string `json:"type"`

	// Set on camera messages. An indirect camera, such as a shadow view,
	// marks the objects it sees as indirectly visible.
	Camera      *models.Camera `json:"camera,omitempty"`
	Categories  uint32         `json:"categories,omitempty"`
	IncludeTags []string       `json:"include_tags,omitempty"`
	ExcludeTags []string       `json:"exclude_tags,omitempty"`
	Indirect    bool           `json:"indirect,omitempty"`

	// Set on visible messages.
	Frame   uint64            `json:"frame,omitempty"`
	Objects []string          `json:"objects,omitempty"`
	Stats   *dagaz.QueryStats `json:"stats,omitempty"`

	// Set on error messages.
	Error string `json:"error,omitempty"`
}

// Receiver reads a message and returns it with the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

func newReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return Msg{}, len(b), errors.New("decoding message failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return msg, len(b), nil
	}
}

func newSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}
