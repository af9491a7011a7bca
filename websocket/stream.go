package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/dagaz/featureflag"
	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

const (
	defaultIdleTimeout     = time.Minute * 5
	defaultCameraRateLimit = 30
)

// StreamHandler streams the objects visible from a client camera.
type StreamHandler struct {
	Scene *models.Scene

	// The duration after which a client that sent nothing is disconnected.
	ClientIdleTimeout time.Duration

	// The number of camera updates accepted per second. Updates above it are
	// dropped.
	CameraRateLimit float64

	FeatureFlags featureflag.FeatureFlag

	initOnce sync.Once
	clientID string
	limiter  *rate.Limiter
	frustum  *dagaz.Frustum
	params   dagaz.QueryParams
	dropped  int
	conn     *websocket.Conn
}

func (h *StreamHandler) init() {
	h.initOnce.Do(func() {
		if h.ClientIdleTimeout == 0 {
			h.ClientIdleTimeout = defaultIdleTimeout
		}
		if h.CameraRateLimit == 0 {
			h.CameraRateLimit = defaultCameraRateLimit
		}

		h.clientID = uuid.NewString()
		h.limiter = rate.NewLimiter(rate.Limit(h.CameraRateLimit), max(1, int(h.CameraRateLimit)))
		h.params.Scratch = dagaz.NewQueryScratch()
	})
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.init()
	h.conn = conn
}

// HandleCamera replaces the client camera and answers with the objects it
// sees. Updates above the rate limit are skipped.
func (h *StreamHandler) HandleCamera(ctx context.Context, send func(Msg), msg Msg) error {
	h.init()

	if !h.limiter.Allow() {
		h.dropped++
		return errors.New("camera rate limit exceeded").
			WithType(ErrTypeMsgSkip).
			WithTag("dropped", h.dropped)
	}

	if msg.Camera == nil {
		return errors.New("camera message without camera").
			WithType(ErrTypeInvalidMsg)
	}
	if err := msg.Camera.Validate(); err != nil {
		return errors.New("invalid camera").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}

	include, err := h.Scene.Tags(msg.IncludeTags...)
	if err != nil {
		return errors.New("invalid include tags").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}
	exclude, err := h.Scene.Tags(msg.ExcludeTags...)
	if err != nil {
		return errors.New("invalid exclude tags").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}

	f := msg.Camera.Frustum()
	h.frustum = &f
	h.params.Categories = msg.Categories
	h.params.IncludeTags = include
	h.params.ExcludeTags = exclude
	h.params.Visibility = dagaz.Direct
	if msg.Indirect {
		h.params.Visibility = dagaz.Indirect
	}

	h.sendVisible(send, h.Scene.Frame())
	return nil
}

// HandleFrame sends the objects visible from the client camera unless no
// camera was received yet.
func (h *StreamHandler) HandleFrame(ctx context.Context, send func(Msg), frame uint64) error {
	if h.frustum == nil || h.FeatureFlags.IsSet(featureflag.FlagDisableVisibilityBroadcast) {
		return nil
	}

	h.sendVisible(send, frame)
	return nil
}

func (h *StreamHandler) sendVisible(send func(Msg), frame uint64) {
	objects, stats := h.Scene.QueryFrustum(*h.frustum, h.params)

	ids := make([]string, len(objects))
	for i, o := range objects {
		ids[i] = o.ID.String()
	}

	send(Msg{
		Type:    MsgTypeVisible,
		Frame:   frame,
		Objects: ids,
		Stats:   &stats,
	})
}

func (h *StreamHandler) HandleDisconnect(err error) {
}

func (h *StreamHandler) SubscribeFrames(fn func(frame uint64)) func() {
	return h.Scene.HandleFrame(fn)
}

func (h *StreamHandler) GetClientID() string {
	h.init()
	return h.clientID
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	h.init()
	return h.ClientIdleTimeout
}

// DroppedCameraUpdates returns the number of camera updates skipped by the
// rate limit.
func (h *StreamHandler) DroppedCameraUpdates() int {
	return h.dropped
}

func (h *StreamHandler) Receiver() Receiver {
	return newReceiver(h.conn)
}

func (h *StreamHandler) Sender() Sender {
	return newSender(h.conn)
}

func (h *StreamHandler) Close() {
}
