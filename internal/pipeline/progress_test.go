package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "scan ").WithWidth(10)

	cb.OnStart(4)
	cb.OnProgress(2, 4)
	cb.OnError(3, errors.New("boom"))
	cb.OnProgress(4, 4)
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "scan 0/4")
	assert.Contains(t, out, "Error at item 3: boom")
	assert.Contains(t, out, "["+strings.Repeat("█", 10)+"] 4/4")
	assert.Contains(t, out, "Completed in")
}

func TestConsoleProgressCallbackThrottles(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "")
	cb.OnStart(100)
	cb.OnProgress(1, 100)
	cb.OnProgress(2, 100)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cb := NewLogProgressCallback(logger, 5)

	cb.OnStart(7)
	for i := 1; i <= 7; i++ {
		cb.OnProgress(i, 7)
	}
	cb.OnError(2, errors.New("bad file"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "Starting batch")
	assert.Equal(t, 2, strings.Count(out, "Batch progress"))
	assert.Contains(t, out, "current=5")
	assert.Contains(t, out, "current=7")
	assert.Contains(t, out, "bad file")
	assert.Contains(t, out, "Batch completed")
}
