package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadpnp/school-import/internal/logging"
)

func TestWithBatchAddsFields(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("info", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.Logger.SetOutput(&buf)

	logger.WithBatch("b-1", "student").WithField("row", 4).Info("row rejected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "b-1", line["batch_id"])
	assert.Equal(t, "student", line["entity"])
	assert.Equal(t, float64(4), line["row"])
	assert.Equal(t, "row rejected", line["msg"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := logging.New("chatty", false)
	assert.Error(t, err)
}

func TestDebugForcesDebugLevel(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("warn", true)
	require.NoError(t, err)
	assert.True(t, logger.Logger.IsLevelEnabled(logrus.DebugLevel))
}
