package version

import (
	"bytes"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("Starting", "build", Info{Version: "v1.2.0", Commit: "abc123", BuildTime: "t", GoVersion: "go"})

	assert.Contains(t, buf.String(), "build.version=v1.2.0")
	assert.Contains(t, buf.String(), "build.commit=abc123")
}
