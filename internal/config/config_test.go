package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	content := `
server:
  port: 9090

mysql:
  host: db.local
  port: 3306
  user: coachlog
  password: secret
  database: coachlog
  max_open_conns: 20
  max_idle_conns: 5

redis:
  host: cache.local
  port: 6379

kafka:
  brokers:
    - broker1:9092
  topic:
    credit_changed: t.credit
    workout_consumed: t.workout

business:
  strict_missing_package: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := LoadConfig(path)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.local", cfg.MySQL.Host)
	assert.Equal(t, []string{"broker1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "t.credit", cfg.Kafka.Topic.CreditChanged)
	assert.Equal(t, "t.workout", cfg.Kafka.Topic.WorkoutConsumed)

	// 显式配置覆盖默认值
	assert.True(t, cfg.Business.StrictMissingPackage)

	// 未配置的业务项取默认值
	assert.Equal(t, 60, cfg.Business.SweepIntervalSeconds)
	assert.Equal(t, 100, cfg.Business.SweepBatchSize)
	assert.True(t, cfg.Business.AllowNegativeBalance)
	assert.Equal(t, 3, cfg.Business.MaxRetryCount)
}
