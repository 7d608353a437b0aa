package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is a text-frame request. Binary frames are treated as a
// bare image to detect.
type WebSocketRequest struct {
	Type    string        `json:"type"` // "detect" or "rectify"
	Image   []byte        `json:"image,omitempty"`
	Corners []utils.Point `json:"corners,omitempty"`
	Format  string        `json:"format,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is sent as a text frame for every request.
type WebSocketResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"` // "processing", "completed", "error"
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RectifyResult announces the binary frame that follows a rectify response.
type RectifyResult struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// detectWebSocketHandler handles WebSocket connections for streaming detection.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketDetect(conn, data, newRequestID())
		case websocket.TextMessage:
			s.handleWebSocketMessage(conn, data)
		}
	}
}

func newRequestID() string { return strconv.FormatInt(time.Now().UnixNano(), 10) }

// handleWebSocketMessage dispatches a JSON request.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	requestID := newRequestID()

	switch req.Type {
	case "detect":
		s.processWebSocketDetect(conn, req.Image, requestID)
	case "rectify":
		s.processWebSocketRectify(conn, req, requestID)
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

func (s *Server) decodeWebSocketImage(conn WebSocketConnWriter, data []byte, requestID string) (image.Image, bool) {
	if len(data) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", err))
		return nil, false
	}
	return img, true
}

// processWebSocketDetect answers with the detection result.
func (s *Server) processWebSocketDetect(conn WebSocketConnWriter, data []byte, requestID string) {
	img, ok := s.decodeWebSocketImage(conn, data, requestID)
	if !ok {
		return
	}
	ctx, cancel := s.websocketContext()
	defer cancel()
	res, err := s.detect(ctx, img, "websocket")
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("Detection failed: %v", err))
		return
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "detection",
		Status:    "completed",
		Result:    newDetectResponse(res),
		RequestID: requestID,
	})
}

// processWebSocketRectify answers with a JSON header and the encoded image
// as a binary frame.
func (s *Server) processWebSocketRectify(conn WebSocketConnWriter, req WebSocketRequest, requestID string) {
	if s.pipeline == nil {
		s.sendWebSocketError(conn, requestID, "processing_error", errPipelineUnavailable.Error())
		return
	}
	img, ok := s.decodeWebSocketImage(conn, req.Image, requestID)
	if !ok {
		return
	}
	format := req.Format
	if format == "" {
		format = "png"
	}

	corners := req.Corners
	if len(corners) == 0 {
		ctx, cancel := s.websocketContext()
		res, err := s.detect(ctx, img, "websocket")
		cancel()
		if err != nil {
			s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("Detection failed: %v", err))
			return
		}
		corners = res.Corners.Points()
	}

	out, err := s.pipeline.Rectify(img, corners)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("Rectification failed: %v", err))
		return
	}
	var buf bytes.Buffer
	if err := utils.EncodeImageQuality(&buf, out, format, s.jpegQuality); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:   "rectification",
		Status: "completed",
		Result: RectifyResult{
			Width:  out.Rect.Dx(),
			Height: out.Rect.Dy(),
			Format: format,
			Bytes:  buf.Len(),
		},
		RequestID: requestID,
	})
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		slog.Error("Failed to send WebSocket image", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
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

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
