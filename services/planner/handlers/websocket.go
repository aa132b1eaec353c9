package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/services"
)

// WSGenerateRequest is the first (and only) message a client sends after
// connecting to the generation websocket.
type WSGenerateRequest struct {
	Destination string             `json:"destination"`
	TripType    datatypes.TripType `json:"trip_type"`
	RequestID   string             `json:"request_id,omitempty"`
}

// WSMessage is every frame the server sends. Type is one of:
//   - "progress": a pipeline stage update (Stage/Message/Day/Days/Attempt set)
//   - "complete": the pipeline finished (Trip set)
//   - "error": the pipeline failed (Error/Code set)
type WSMessage struct {
	Type    string                 `json:"type"`
	Stage   services.ProgressStage `json:"stage,omitempty"`
	Message string                 `json:"message,omitempty"`
	Day     int                    `json:"day,omitempty"`
	Days    int                    `json:"days,omitempty"`
	Attempt int                    `json:"attempt,omitempty"`
	Trip    *datatypes.Trip        `json:"trip,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleGenerateTripWS handles GET /v1/trips/generate/ws: the streaming
// variant of trip generation. The client sends one WSGenerateRequest,
// receives progress frames as the pipeline advances, and finally one
// complete or error frame. The connection closes after the final frame.
//
// Progress events are produced inline by the pipeline and written from
// this handler's goroutine, so frames never interleave.
func HandleGenerateTripWS(generator TripGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Websocket client connected for trip generation")

		var wsReq WSGenerateRequest
		if err := ws.ReadJSON(&wsReq); err != nil {
			slog.Info("Websocket client disconnected before sending a request", "error", err.Error())
			return
		}

		req := datatypes.TripRequest{
			RequestID:   wsReq.RequestID,
			Destination: wsReq.Destination,
			TripType:    wsReq.TripType,
		}

		opts := services.AssembleOptions{
			OnProgress: func(event services.ProgressEvent) {
				_ = sendJSON(ws, WSMessage{
					Type:    "progress",
					Stage:   event.Stage,
					Message: event.Message,
					Day:     event.Day,
					Days:    event.Days,
					Attempt: event.Attempt,
				})
			},
		}

		trip, err := generator.GenerateTrip(c.Request.Context(), &req, opts)
		if err != nil {
			slog.Error("Websocket trip generation failed",
				"request_id", req.RequestID,
				"destination", req.Destination,
				"code", datatypes.CodeOf(err),
				"error", err,
			)
			_, body := errorResponse(err)
			_ = sendJSON(ws, WSMessage{
				Type:  "error",
				Error: body["error"].(string),
				Code:  body["code"].(string),
			})
			return
		}

		_ = sendJSON(ws, WSMessage{Type: "complete", Trip: trip})
	}
}
