package server

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
)

// recordingConn captures messages written by the WebSocket handlers.
type recordingConn struct {
	mu       sync.Mutex
	messages []recordedMessage
}

type recordedMessage struct {
	kind int
	data []byte
}

func (c *recordingConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, recordedMessage{kind: messageType, data: data})
	return nil
}

func (c *recordingConn) responses(t *testing.T) []WebSocketResponse {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []WebSocketResponse
	for _, m := range c.messages {
		if m.kind != websocket.TextMessage {
			continue
		}
		var resp WebSocketResponse
		require.NoError(t, json.Unmarshal(m.data, &resp))
		out = append(out, resp)
	}
	return out
}

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/detect"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketBinaryDetect(t *testing.T) {
	s := newTestServer(t, nil)
	s.pipeline = &mockPipeline{}
	conn := dialTestServer(t, s)

	img := image.NewGray(image.Rect(0, 0, 200, 100))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodePNG(t, img)))

	var resp struct {
		Type   string         `json:"type"`
		Status string         `json:"status"`
		Result DetectResponse `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "detection", resp.Type)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, detector.StrategyFallback, resp.Result.Strategy)
	assert.True(t, resp.Result.Fallback)
	assert.Equal(t, 200, resp.Result.Width)
	require.Len(t, resp.Result.Corners, 4)
	assert.InDelta(t, 20, resp.Result.Corners[0].X, 1e-9)
}

func TestWebSocketTextRectify(t *testing.T) {
	s := newTestServer(t, nil)
	s.pipeline = &mockPipeline{}
	conn := dialTestServer(t, s)

	req := WebSocketRequest{
		Type:  "rectify",
		Image: encodePNG(t, image.NewGray(image.Rect(0, 0, 64, 48))),
	}
	require.NoError(t, conn.WriteJSON(req))

	var header struct {
		Type   string        `json:"type"`
		Status string        `json:"status"`
		Result RectifyResult `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&header))
	assert.Equal(t, "rectification", header.Type)
	assert.Equal(t, 10, header.Result.Width)
	assert.Equal(t, 20, header.Result.Height)
	assert.Equal(t, "png", header.Result.Format)

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Len(t, data, header.Result.Bytes)
	out, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 20), out.Bounds())
}

func TestWebSocketMessageErrors(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		pipeline  pipelineInterface
		errorType string
		contains  string
	}{
		{"invalid json", "{not json", &mockPipeline{}, "invalid_request", "Failed to parse request"},
		{"unsupported type", `{"type":"translate"}`, &mockPipeline{}, "invalid_request", "Unsupported request type: translate"},
		{"missing image", `{"type":"detect"}`, &mockPipeline{}, "invalid_request", "No image data provided"},
		{"undecodable image", `{"type":"detect","image":"aGVsbG8="}`, &mockPipeline{}, "invalid_request", "Failed to decode image"},
		{"detect failure", "", &mockPipeline{detectErr: errBoom}, "processing_error", "Detection failed: boom"},
		{"rectify failure", "", &mockPipeline{rectifyErr: errBoom}, "processing_error", "Rectification failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.pipeline = tt.pipeline
			conn := &recordingConn{}

			payload := []byte(tt.payload)
			if tt.payload == "" {
				kind := "detect"
				if strings.HasPrefix(tt.name, "rectify") {
					kind = "rectify"
				}
				var err error
				payload, err = json.Marshal(WebSocketRequest{
					Type:  kind,
					Image: encodePNG(t, image.NewGray(image.Rect(0, 0, 32, 32))),
				})
				require.NoError(t, err)
			}
			s.handleWebSocketMessage(conn, payload)

			responses := conn.responses(t)
			require.Len(t, responses, 1)
			assert.Equal(t, "error", responses[0].Type)
			assert.Equal(t, tt.errorType, responses[0].ErrorType)
			assert.Contains(t, responses[0].Error, tt.contains)
		})
	}
}

func TestWebSocketRectifyWithoutPipeline(t *testing.T) {
	s := newTestServer(t, nil)
	s.pipeline = nil
	conn := &recordingConn{}

	s.processWebSocketRectify(conn, WebSocketRequest{Type: "rectify"}, "req-1")

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "req-1", responses[0].RequestID)
	assert.Equal(t, "processing_error", responses[0].ErrorType)
}
