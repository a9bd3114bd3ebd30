package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Format: "json", Output: &buf})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithFields(logrus.Fields{"source": "techcrunch"}).Info("polled")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "techcrunch", line["source"])
	assert.Equal(t, "polled", line["msg"])
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	logger := New(Options{Level: "loud", Output: &bytes.Buffer{}})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
