package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom-backend/internal/game"
	"github.com/quizroom/quizroom-backend/internal/response"
	ws "github.com/quizroom/quizroom-backend/internal/websocket"
	"github.com/rs/zerolog"
)

const readWait = 5 * time.Minute

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the real-time game streams.
type WSHandler struct {
	engine   *game.Engine
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(engine *game.Engine, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		engine:   engine,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// PlayStream godoc
// WS /ws/v1/play
// Upgrades to WebSocket for gameplay. The first message must be a join
// action carrying the session code; everything after flows as typed events.
func (h *WSHandler) PlayStream(c *gin.Context) {
	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	var join ws.JoinRequest
	if err := ws.ReadJSON(sock, &join); err != nil || join.Action != ws.ActionJoin {
		ws.WriteError(sock, "a join action must be the first message", string(response.ErrInvalidPayload))
		sock.Close()
		return
	}
	if join.Code == "" {
		ws.WriteError(sock, "code is required", string(response.ErrValidation))
		sock.Close()
		return
	}

	sessionID, err := h.engine.ResolveCode(join.Code)
	if err != nil {
		ws.WriteError(sock, response.GetMessage(response.ErrSessionNotFound), string(response.ErrSessionNotFound))
		sock.Close()
		return
	}

	// The connection joins the room before the engine join so the player
	// receives their own joined event. Either the client presents a prior
	// player id (reconnect) or a fresh one is minted here.
	playerID := uuid.New()
	if join.PlayerID != "" {
		if parsed, err := uuid.Parse(join.PlayerID); err == nil {
			playerID = parsed
		}
	}

	conn := ws.NewConn(sock, sessionID, false)
	conn.BindPlayer(playerID)
	h.hub.Register(conn)

	player, err := h.engine.Join(sessionID, join.Name, join.DeviceTag, &playerID, conn.ID)
	if err != nil {
		code := gameErrCode(err)
		h.hub.Send(conn, ws.ErrorResponse{Event: ws.EventError, Error: response.GetMessage(code), Code: string(code)})
		h.hub.Unregister(conn)
		return
	}

	wsLog := h.log.With().
		Str("session_id", sessionID.String()).
		Str("player_id", player.ID.String()).
		Logger()
	wsLog.Info().Str("name", player.Name).Msg("Player connected")

	defer func() {
		h.engine.Disconnect(sessionID, player.ID, conn.ID)
		h.hub.Unregister(conn)
		wsLog.Info().Msg("Player disconnected")
	}()

	for {
		sock.SetReadDeadline(time.Now().Add(readWait))
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.hub.Send(conn, ws.ErrorResponse{Event: ws.EventError, Error: "malformed message", Code: string(response.ErrInvalidPayload)})
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sessionID, player.ID, raw)
		case ws.ActionState:
			if err := h.engine.RequestState(sessionID, player.ID); err != nil {
				h.sendGameError(conn, err)
			}
		case ws.ActionPing:
			h.hub.Send(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			h.hub.Send(conn, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(envelope.Action), Code: string(response.ErrInvalidPayload)})
		}
	}
}

// ObserveStream godoc
// WS /ws/v1/observe/:session_id?token=...
// Host-authenticated read-only stream of a live session's events.
func (h *WSHandler) ObserveStream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.engine.Describe(sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := ws.NewConn(sock, sessionID, true)
	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	// Initial full snapshot so the observer does not start blind.
	h.hub.Send(conn, game.Event{Type: game.EventState, Data: snap})

	h.log.Info().Str("session_id", sessionID.String()).Msg("Observer connected")

	for {
		sock.SetReadDeadline(time.Now().Add(readWait))
		_, raw, err := sock.ReadMessage()
		if err != nil {
			h.log.Debug().Str("session_id", sessionID.String()).Msg("Observer closed")
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if envelope.Action == ws.ActionPing {
			h.hub.Send(conn, ws.PongResponse{Event: ws.EventPong})
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, sessionID, playerID uuid.UUID, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.hub.Send(conn, ws.ErrorResponse{Event: ws.EventError, Error: "malformed answer", Code: string(response.ErrInvalidPayload)})
		return
	}

	if err := h.engine.SubmitAnswer(sessionID, playerID, req.ChoiceIndex); err != nil {
		h.sendGameError(conn, err)
	}
}

func (h *WSHandler) sendGameError(conn *ws.Conn, err error) {
	code := gameErrCode(err)
	h.hub.Send(conn, ws.ErrorResponse{Event: ws.EventError, Error: response.GetMessage(code), Code: string(code)})
}

// gameErrCode maps engine sentinels onto API error codes.
func gameErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return response.ErrSessionNotFound
	case errors.Is(err, game.ErrSessionClosed):
		return response.ErrSessionClosed
	case errors.Is(err, game.ErrSessionUnavailable):
		return response.ErrSessionUnavailable
	case errors.Is(err, game.ErrDuplicateAnswer):
		return response.ErrDuplicateAnswer
	case errors.Is(err, game.ErrInvalidSubmission):
		return response.ErrInvalidSubmission
	case errors.Is(err, game.ErrPlayerNotFound):
		return response.ErrNotFound
	default:
		return response.ErrInternal
	}
}
