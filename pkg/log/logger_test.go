package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNewLogger_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("loud", &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level 'loud'")
}

func TestComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	entry := Component(NewLogger("info", &buf), "downloader")
	assert.Equal(t, "downloader", entry.Data["component"])

	entry.Info("started")
	assert.Contains(t, buf.String(), "component=downloader")
}
