package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/scotthooker/commerce-stripe/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_TeesToShipper(t *testing.T) {
	var shipped bytes.Buffer
	log, err := logger.New("production", &shipped)
	require.NoError(t, err)

	log.Info("payment captured", zap.String("payment_id", "p1"))
	_ = log.Sync()

	line := strings.TrimSpace(shipped.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "payment captured", entry["msg"])
	assert.Equal(t, "p1", entry["payment_id"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_WithoutShipper(t *testing.T) {
	log, err := logger.New("development", nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestConfig_Levels(t *testing.T) {
	assert.False(t, logger.Config("production").Development)
	assert.True(t, logger.Config("development").Development)
}
