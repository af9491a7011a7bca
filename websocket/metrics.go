package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel  = "error_type"
	msgTypeLabel  = "msg_type"
	endpointLabel = "endpoint"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected clients.",
	}, []string{
		endpointLabel,
	})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from WebSocket connections.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	wsReceivedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_bytes",
		Help: "The number of bytes received from WebSocket connections.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	wsReceiveError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_receive_errors",
		Help: "The errors that occured while receiving a websocket message.",
	}, []string{
		endpointLabel,
		errTypeLabel,
	})

	wsDroppedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_dropped_msgs",
		Help: "The number of received messages dropped by rate limiting.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to WebSocket connections.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to WebSocket connections.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})

	wsSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a websocket message.",
	}, []string{
		endpointLabel,
		errTypeLabel,
		msgTypeLabel,
	})

	wsMsgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ws_msg_latency",
		Help: "The time to process a WebSocket msg.",
	}, []string{
		endpointLabel,
		msgTypeLabel,
	})
)

// HandlerWithMetrics records the traffic of h under the given endpoint.
func HandlerWithMetrics(h Handler, endpoint string) Handler {
	return &handlerWithMetrics{
		Handler:  h,
		endpoint: endpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	endpoint string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	wsConnectedClients.
		With(prometheus.Labels{
			endpointLabel: h.endpoint,
		}).
		Inc()

	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedClients.
		With(prometheus.Labels{
			endpointLabel: h.endpoint,
		}).
		Dec()

	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandleCamera(ctx context.Context, send func(Msg), msg Msg) error {
	return h.measureLatency(msg.Type, func() error {
		return h.Handler.HandleCamera(ctx, send, msg)
	})
}

func (h *handlerWithMetrics) HandleFrame(ctx context.Context, send func(Msg), frame uint64) error {
	return h.measureLatency(MsgTypeVisible, func() error {
		return h.Handler.HandleFrame(ctx, send, frame)
	})
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			wsReceiveError.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					errTypeLabel:  errors.Type(err),
				}).
				Inc()
		} else {
			wsReceivedMsgs.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.Type,
				}).
				Inc()
		}

		if n != 0 {
			wsReceivedBytes.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.Type,
				}).
				Add(float64(n))
		}

		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		n, err := sender(msg)
		if err != nil {
			wsSendError.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.Type,
					errTypeLabel:  errors.Type(err),
				}).
				Inc()
		}

		if n != 0 {
			wsSentMsgs.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.Type,
				}).
				Inc()
			wsSentBytes.
				With(prometheus.Labels{
					endpointLabel: h.endpoint,
					msgTypeLabel:  msg.Type,
				}).
				Add(float64(n))
		}

		return n, err
	}
}

func (h *handlerWithMetrics) measureLatency(msgType string, f func() error) error {
	start := time.Now()

	err := f()
	if errors.IsType(err, ErrTypeMsgSkip) {
		wsDroppedMsgs.With(prometheus.Labels{
			endpointLabel: h.endpoint,
			msgTypeLabel:  msgType,
		}).Inc()
		return err
	}

	wsMsgLatency.With(prometheus.Labels{
		endpointLabel: h.endpoint,
		msgTypeLabel:  msgType,
	}).Observe(time.Since(start).Seconds())

	return err
}
