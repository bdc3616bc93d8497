package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"2MB":     2 << 20,
		"512kb":   512 << 10,
		"1GB":     1 << 30,
		"100B":    100,
		"1048576": 1048576,
	}
	for in, want := range cases {
		got, ok := ParseSize(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "-1MB", "0"} {
		_, ok := ParseSize(bad)
		assert.False(t, ok, bad)
	}
}

func TestServicePort(t *testing.T) {
	assert.Equal(t, "8002", ServicePort("http://localhost:8002", "80"))
	assert.Equal(t, "80", ServicePort("http://localhost", "80"))
	assert.Equal(t, "80", ServicePort("::not a url", "80"))
}

func TestTypedAccessorsFallBack(t *testing.T) {
	c := &Config{
		ChatWebhookTimeoutSeconds: "oops",
		AgentCacheTTLSeconds:      "",
		ChatHistoryLimit:          "5",
		AgentAvatarMaxSize:        "huge",
		AgentAvatarAllowedTypes:   ".PNG, .jpg,,",
		KafkaBrokers:              "",
		FrontendURL:               "http://localhost:3000, https://app.agentdesk.io",
	}

	assert.Equal(t, 60*time.Second, c.WebhookTimeout())
	assert.Equal(t, 300*time.Second, c.AgentCacheTTL())
	assert.Equal(t, 5, c.HistoryLimit())
	assert.Equal(t, int64(2<<20), c.AvatarMaxSizeBytes())
	assert.Equal(t, []string{".png", ".jpg"}, c.AvatarAllowedTypes())
	assert.Empty(t, c.KafkaBrokerList())
	assert.Equal(t, []string{"http://localhost:3000", "https://app.agentdesk.io"}, c.FrontendOrigins())
}

func TestFromEnvReadsOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("AGENT_CACHE_TTL_SECONDS", "42")

	c := Default()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokerList())
	assert.True(t, c.MinIOUseSSL)
	assert.Equal(t, 42*time.Second, c.AgentCacheTTL())
	assert.Equal(t, "agentdesk", c.DBName)
}
