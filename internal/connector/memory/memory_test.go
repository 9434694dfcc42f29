package memory

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/connector"
	"pseudobench/internal/workload"
)

func TestConnector_Lifecycle(t *testing.T) {
	store := NewStore()
	conn, err := NewFactory(store, Options{Domain: "bench"}).New()
	require.NoError(t, err)
	ctx := t.Context()

	require.NoError(t, conn.Prepare(ctx))
	ref, err := conn.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ID", ref.IDType)
	assert.Regexp(t, `^ID-`, ref.IDString)
	assert.Equal(t, 1, store.Len("bench"))

	require.NoError(t, conn.Read(ctx, ref))
	require.NoError(t, conn.Update(ctx, ref))
	require.NoError(t, conn.Delete(ctx, ref))
	assert.ErrorIs(t, conn.Read(ctx, ref), connector.ErrNotFound)
	assert.ErrorIs(t, conn.Delete(ctx, ref), connector.ErrNotFound)

	code, err := conn.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, uint64(2), store.Calls(workload.Read))
	assert.Equal(t, uint64(2), store.Calls(workload.Delete))
}

func TestConnector_PrepareResetsDomain(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store, Options{Domain: "bench"})
	a, _ := factory.New()
	b, _ := factory.New()

	_, err := a.Create(t.Context())
	require.NoError(t, err)
	_, err = b.Create(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len("bench"))

	require.NoError(t, a.Prepare(t.Context()))
	assert.Zero(t, store.Len("bench"))

	usage, err := a.(connector.StorageReporter).StorageConsumption(t.Context(), "pseudonym")
	require.NoError(t, err)
	assert.Equal(t, "0", usage)
}

func TestConnector_LatencyHonoursContext(t *testing.T) {
	conn, _ := NewFactory(NewStore(), Options{Domain: "bench", Latency: time.Minute}).New()
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.Create(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
