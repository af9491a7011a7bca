package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 64
	receiveChanSize = 16
)

// Handler represents a stream handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a camera update.
	HandleCamera(ctx context.Context, send func(Msg), msg Msg) error

	// Handles a scene frame.
	HandleFrame(ctx context.Context, send func(Msg), frame uint64) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Registers a function called on every scene frame.
	SubscribeFrames(func(frame uint64)) (cancel func())

	// Returns the client id.
	GetClientID() string

	// Returns the duration after which a client that sent nothing is
	// disconnected.
	IdleTimeout() time.Duration

	// Returns the function that reads messages from the client.
	Receiver() Receiver

	// Returns the function that writes messages to the client.
	Sender() Sender

	// Closes the handler.
	Close()
}

// Handle serves the connection with the given handler until the client
// disconnects or ctx is done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The stream handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	frameChan      chan uint64
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	sender := h.Handler.Sender()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx, sender)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	receiver := h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx, receiver)
	}()

	// Frames are coalesced: a slow client skips frames instead of blocking
	// the scene.
	h.frameChan = make(chan uint64, 1)
	unsubscribe := h.Handler.SubscribeFrames(func(frame uint64) {
		select {
		case h.frameChan <- frame:
		default:
		}
	})
	defer unsubscribe()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case frame := <-h.frameChan:
			if err := h.Handler.HandleFrame(ctx, h.send, frame); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		logs.WithTag("client_id", h.Handler.GetClientID()).
			WithTag("msg_type", msg.Type).
			Debug("send queue is full, message dropped")
	}
}

func (h *handler) startSending(ctx context.Context, sender Sender) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context, receiver Receiver) {
	for ctx.Err() == nil {
		msg, _, err := receiver()
		if errors.IsType(err, ErrTypeInvalidMsg) {
			h.send(Msg{
				Type:  MsgTypeError,
				Error: err.Error(),
			})
			continue
		}
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg) error {
	var err error

	switch msg.Type {
	case MsgTypeCamera:
		err = h.Handler.HandleCamera(ctx, h.send, msg)

	default:
		err = errors.New("unknown message type").
			WithType(ErrTypeInvalidMsg).
			WithTag("type", msg.Type)
	}

	switch {
	case errors.IsType(err, ErrTypeMsgSkip):
		return nil

	case errors.IsType(err, ErrTypeInvalidMsg):
		h.send(Msg{
			Type:  MsgTypeError,
			Error: err.Error(),
		})
		return nil

	default:
		return err
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}
