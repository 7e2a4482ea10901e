package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"telematics/pkg/models"
	"telematics/storage"
	"telematics/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storage.IStorage { return New() })
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	st := New()
	require.NoError(t, st.Record().Upsert(ctx, storagetest.Records()))

	rec, err := st.Record().GetByDriverID(ctx, 1)
	require.NoError(t, err)
	*rec.SuddenBrakingEvents = 999

	again, err := st.Record().GetByDriverID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 40, *again.SuddenBrakingEvents)

	d, err := st.Driver().Create(ctx, &models.Driver{DriverID: "1", LicensePlate: "p", LicenseNumber: "n"})
	require.NoError(t, err)
	d.LicensePlate = "changed"
	got, err := st.Driver().GetByDriverID(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "p", got.LicensePlate)
}
