package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doclens/doclens/internal/pipeline"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// StreamResponse is an extraction progress frame sent over WebSocket.
type StreamResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// streamConnWriter is the subset of *websocket.Conn the stream handlers
// need, for test substitution.
type streamConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// extractStreamHandler handles WebSocket connections for extraction with
// progress reporting.
func (s *Server) extractStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleStreamConnection(r, conn)
}

// handleStreamConnection processes messages from a WebSocket connection.
func (s *Server) handleStreamConnection(r *http.Request, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Ping to keep the connection alive while inference runs.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleStreamMessage(r, conn, data)
		}
	}
}

// handleStreamMessage runs one extraction request received over the socket.
func (s *Server) handleStreamMessage(r *http.Request, conn *websocket.Conn, data []byte) {
	var req ExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendStreamError(conn, errorInvalidInput, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	s.sendStreamResponse(conn, StreamResponse{
		Type:      "extract_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	// For PDF references, report the expected page count before inference.
	if req.FileName != "" && pipeline.IsPDF(req.FileName) {
		if res, err := s.resolver.Resolve("", req.FileName); err == nil {
			if count, err := pipeline.DocumentPages(res.Path); err == nil {
				s.sendStreamResponse(conn, StreamResponse{
					Type:      "extract_response",
					Status:    "processing",
					Progress:  0.2,
					Result:    map[string]any{"expected_pages": count},
					RequestID: requestID,
				})
			}
		}
	}

	start := time.Now()
	response := s.runExtract(r, &req)
	duration := time.Since(start)

	if !response.Success {
		extractRequestsTotal.WithLabelValues("stream", "error").Inc()
		s.sendStreamError(conn, response.ErrorType, response.Error)
		return
	}

	extractRequestsTotal.WithLabelValues("stream", "success").Inc()
	extractProcessingDuration.WithLabelValues("stream").Observe(duration.Seconds())

	s.sendStreamResponse(conn, StreamResponse{
		Type:      "extract_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    response,
		RequestID: requestID,
	})
}

// sendStreamResponse sends a progress frame over WebSocket.
func (s *Server) sendStreamResponse(conn streamConnWriter, response StreamResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendStreamError sends an error frame over WebSocket.
func (s *Server) sendStreamError(conn streamConnWriter, errorType, message string) {
	s.sendStreamResponse(conn, StreamResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
