package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/storage/memory"
)

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.Config{StorageDriver: DriverMemory}, logger.Nop())
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, st)

	_, err = Open(context.Background(), config.Config{StorageDriver: "sqlite"}, logger.Nop())
	require.ErrorContains(t, err, `unknown storage driver "sqlite"`)
}
