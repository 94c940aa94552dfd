package logger

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vital-route-api-server/config"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, Setup(config.LogConfig{Level: "DEBUG", Format: "json"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	require.NoError(t, Setup(config.LogConfig{Level: "warn"}))
	_, isText := log.StandardLogger().Formatter.(*log.TextFormatter)
	assert.True(t, isText)

	assert.Error(t, Setup(config.LogConfig{Level: "loud"}))
}
