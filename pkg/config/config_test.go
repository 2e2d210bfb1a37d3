package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 0.05, c.Engine.LearningRate)
	assert.Equal(t, 10000, c.Engine.OutcomeHistory)
	assert.Equal(t, 15.0, c.Costs.MarketSlippageBps)
	assert.Equal(t, 25.0, c.Costs.StopSlippageBps)
	assert.Equal(t, 0.70, c.Drift.MinAccuracy)
	assert.Equal(t, -1, c.Kafka.Producer.RequiredAcks)
	assert.Equal(t, 30*time.Second, c.Snapshot.Interval)
	assert.False(t, c.Kafka.Enabled)
	assert.True(t, c.Stream.Enabled)
	assert.Equal(t, 32, c.Stream.SendBuffer)
	assert.Equal(t, 30*time.Second, c.Stream.PingInterval)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
engine:
  learning_rate: 0.1
  horizon_weights:
    1h: 0.9
costs:
  commission_bps: 7.5
`))
	require.NoError(t, err)
	assert.Equal(t, 0.1, c.Engine.LearningRate)
	assert.Equal(t, 0.9, c.Engine.HorizonWeights["1h"])
	assert.Equal(t, 7.5, c.Costs.CommissionBps)
	assert.Equal(t, 5.0, c.Costs.SellTaxBps)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"learning rate":   "engine:\n  learning_rate: 2\n",
		"negative cost":   "costs:\n  sell_tax_bps: -1\n",
		"drift order":     "drift:\n  model_drift_high: 0.2\n",
		"kafka brokers":   "kafka:\n  enabled: true\n",
		"negative weight": "engine:\n  horizon_weights:\n    1d: -0.5\n",
		"stream buffer":   "stream:\n  send_buffer: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"KAFKA_BROKERS": "a:9092,b:9092",
		"HTTP_PORT":     "9090",
		"REDIS_ADDR":    "cache:6379",
	}
	require.NoError(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 9090, c.Server.Port)

	env["HTTP_PORT"] = "http"
	assert.Error(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\nserver:\n  port: 9000\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9000, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "fusion.retrain-recommendations", c.Kafka.RecommendationTopic)
	assert.Equal(t, uint32(3), c.Breaker.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, c.Breaker.Timeout)
	assert.Equal(t, "fusion", c.Redis.KeyPrefix)
	assert.False(t, c.ClickHouse.Enabled)
}
