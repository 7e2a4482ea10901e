package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"telematics/pkg/logger"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown := Setup("telematics", logger.Nop())
	require.NoError(t, shutdown(context.Background()))
}
