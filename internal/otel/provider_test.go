package otel

import (
	"context"
	"testing"

	"github.com/mrzor/sockstamp/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProvider_DisabledWithoutEndpoint(t *testing.T) {
	tp, err := InitProvider(&config.OTELConfig{ServiceName: "tcp-timestamping"})

	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, ShutdownProvider(context.Background(), tp))
}

func TestInitProvider_WithEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "host and port", endpoint: "127.0.0.1:4318"},
		{name: "url", endpoint: "http://127.0.0.1:4318/v1/traces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.OTELConfig{
				ServiceName:        "udp-timestamping",
				TracesEndpoint:     tt.endpoint,
				ResourceAttributes: "lab=bench",
				Insecure:           true,
			}

			tp, err := InitProvider(cfg)

			require.NoError(t, err)
			require.NotNil(t, tp)
			// Nothing was exported, so shutdown does not touch the network.
			assert.NoError(t, ShutdownProvider(context.Background(), tp))
		})
	}
}
