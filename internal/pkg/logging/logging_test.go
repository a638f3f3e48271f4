package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(format string, level string) *viper.Viper {
	cfg := viper.New()
	cfg.Set("logging.location", "stderr")
	cfg.Set("logging.format", format)
	cfg.Set("logging.level", level)
	return cfg
}

func TestLoggerFields(t *testing.T) {
	assert.Equal(t, gLogger.logger, Logger(nil))
	assert.Equal(t, gLogger.logger, Logger(context.Background()))

	ctx := WithCorrelationID(WithLocation(NewTxn(context.Background()), "Home"), "abc-123")
	entry := Logger(ctx)

	assert.Equal(t, "Home", entry.Data["location"])
	assert.Equal(t, "abc-123", entry.Data["correlation"])
	assert.Len(t, entry.Data["txnid"], 36)
	assert.Equal(t, entry.Data["txnid"], TxnID(ctx))

	assert.Empty(t, TxnID(nil))
	assert.Empty(t, TxnID(context.Background()))
}

func TestConfigureJSON(t *testing.T) {
	logrus.SetLevel(logrus.InfoLevel)
	require.NoError(t, Configure(testConfig("json", "info")))

	prev := logrus.StandardLogger().Out
	defer logrus.SetOutput(prev)

	var buf bytes.Buffer
	logrus.SetOutput(&buf)

	Logger(WithLocation(context.Background(), "Home")).Info("location ready")
	Logger(nil).Debug("not shown")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "location ready", line["msg"])
	assert.Equal(t, "Home", line["location"])
	assert.Equal(t, "info", line["level"])
}

func TestConfigureErrors(t *testing.T) {
	logrus.SetLevel(logrus.InfoLevel)
	defer Configure(testConfig("text", "info"))

	err := Configure(testConfig("xml", "info"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad log format")

	err = Configure(testConfig("text", "chatty"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad log level")
}

func TestConfigureKeepsDebug(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	require.NoError(t, Configure(testConfig("text", "warn")))
	assert.True(t, logrus.IsLevelEnabled(logrus.DebugLevel))
}
