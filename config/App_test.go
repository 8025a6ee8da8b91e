package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	viper.Set("timezone", "UTC")
	viper.Set("base_url", "https://sorteos.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "log", cfg.Notification.Driver)
	assert.Equal(t, 600*time.Millisecond, cfg.Notification.Delay)
	assert.Equal(t, 30*time.Minute, cfg.Cutoff)
	assert.Equal(t, 2*time.Hour, cfg.MinDuration)
	assert.Equal(t, int64(10*1024*1024), cfg.Receipts.MaxSize)
	assert.Equal(t, "https://sorteos.example.com/api/v1/files", cfg.Receipts.PublicURL)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		description string
		settings    map[string]interface{}
		expected    string
	}{
		{"unknown timezone", map[string]interface{}{"timezone": "Mars/Olympus"}, "invalid timezone"},
		{"unknown store", map[string]interface{}{"timezone": "UTC", "store.driver": "mongo"}, "unknown store driver"},
		{"unknown notifier", map[string]interface{}{"timezone": "UTC", "notification.driver": "fax"}, "unknown notification driver"},
		{"email without key", map[string]interface{}{"timezone": "UTC", "notification.driver": "email"}, "resend.api_key"},
		{"sms without address", map[string]interface{}{"timezone": "UTC", "notification.driver": "sms"}, "smpp.address"},
	}
	for _, test := range tests {
		viper.Reset()
		for k, v := range test.settings {
			viper.Set(k, v)
		}
		_, err := Load()
		require.Error(t, err, test.description)
		assert.Contains(t, err.Error(), test.expected, test.description)
	}
}

func TestDatabaseURL(t *testing.T) {
	viper.Reset()
	viper.Set("postgres_db.user", "raffle")
	viper.Set("postgres_db.password", "secret")
	viper.Set("postgres_db.cluster", "db")
	viper.Set("postgres_db.keyspace", "raffles")

	cfg := LoadDatabaseConfig()
	assert.Equal(t, "postgres://raffle:secret@db:5432/raffles?sslmode=disable", cfg.URL())
	assert.Equal(t, int32(4), cfg.MaxConns)
}
