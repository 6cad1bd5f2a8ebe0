package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
)

const disconnectTimeout = 5 * time.Second

var errUnsupportedMessage = errors.New("unsupported message type")

type WSHandler struct {
	registry *app.Registry
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(registry *app.Registry, hub *Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		registry: registry,
		hub:      hub,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and feeds every inbound envelope to the registry.
// Each connection gets a fresh transport id; identity travels in the payloads.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	transportID := uuid.NewString()
	log := h.logger.With(zap.String("conn", transportID))
	outbox := h.hub.register(transportID)
	log.Debug("connection opened", zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// a closed outbox ends the read loop too
		defer conn.Close()
		for evt := range outbox {
			if err := conn.WriteJSON(evt); err != nil {
				log.Debug("ws write error", zap.Error(err))
				// keep draining so Publish never blocks on a dead connection
				for range outbox {
				}
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read error", zap.Error(err))
			}
			break
		}
		if err := h.dispatch(ctx, transportID, env); err != nil {
			log.Info("request rejected", zap.String("type", env.Type), zap.Error(err))
			h.hub.Publish(transportID, domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: err.Error()}})
		}
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	h.registry.Disconnect(dctx, transportID)
	cancel()
	h.hub.unregister(transportID)
	<-writerDone
	log.Debug("connection closed")
}

func (h *WSHandler) dispatch(ctx context.Context, transportID string, env domain.Envelope) error {
	switch env.Type {
	case domain.EventCreateRoom:
		var p domain.CreateRoomPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		_, err := h.registry.CreateRoom(ctx, transportID, p.Participant, p.Config)
		return err
	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.registry.JoinRoom(ctx, transportID, p.RoomID, p.Participant)
	case domain.EventUpdateConfig:
		var p domain.UpdateConfigPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.registry.UpdateConfig(ctx, transportID, p.RoomID, p.Config)
	case domain.EventStartGame:
		var p domain.StartGamePayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return h.registry.StartGame(ctx, transportID, p.RoomID, p.Questions)
	case domain.EventSubmitAnswer:
		var p domain.SubmitAnswerPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		h.registry.SubmitAnswer(ctx, transportID, p.RoomID, p.PointsDelta)
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnsupportedMessage, env.Type)
	}
}

func decode(env domain.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("missing %s payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload", env.Type)
	}
	return nil
}
