package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MEDIA_SERVICE_API", "https://account.restv2.westeurope.media.azure.net/api/")
	t.Setenv("MEDIA_SERVICE_AAD_TENANT", "contoso.onmicrosoft.com")
	t.Setenv("MEDIA_SERVICE_CLIENT_ID", "client")
	t.Setenv("MEDIA_SERVICE_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Media Encoder Standard", cfg.Encoder.MediaProcessor)
	assert.Equal(t, "Adaptive Streaming", cfg.Encoder.Preset)
	assert.True(t, cfg.Encoder.DeletePreviousJobs)
	assert.Equal(t, 4*time.Hour, cfg.Encoder.WriteLocatorTTL)
	assert.Equal(t, "EncodingWebHook", cfg.Webhook.Name)
	assert.Equal(t, "assets/video/chapters/original/", cfg.Ingest.PathPrefix)
	assert.Equal(t, "video/mp4", cfg.Ingest.ContentType)
	assert.Equal(t, "azure", cfg.Storage.Provider)
	assert.Equal(t, "eventgrid", cfg.Events.Publisher)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENCODER_DELETE_PREVIOUS_JOBS", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EVENTS_PUBLISHER", "kafka")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Encoder.DeletePreviousJobs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "kafka", cfg.Events.Publisher)
}

func TestLoadRequiresMediaServiceCredentials(t *testing.T) {
	t.Setenv("MEDIA_SERVICE_API", "")
	_, err := Load()
	assert.Error(t, err)
}
