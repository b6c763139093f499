package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playdata/microshop/internal/ordering/domain"
	orderpg "github.com/playdata/microshop/internal/ordering/infrastructure/postgres"
)

// TestOrderPersistenceRoundTrip exercises the real postgres repositories:
// order + lines + outbox row in one transaction, pending entry round-trip
// with line order intact.
func TestOrderPersistenceRoundTrip(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, orderpg.EnsureSchema(ctx, pool))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := orderpg.NewRepository(log, pool)
	pending := orderpg.NewPendingRepository(log, pool)

	o := domain.NewOrder(7, domain.StatusPlaced)
	o.Lines = []domain.OrderLine{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 3},
	}
	require.NoError(t, orders.SaveWithOutbox(ctx, o, "OrderPlaced", []byte(`{}`), ""))

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Lines, got.Lines, "line order must survive persistence")
	assert.Equal(t, domain.StatusPlaced, got.Status)

	p := domain.NewPendingOrder("a@x.com", []domain.RequestLine{
		{ProductID: 9, Quantity: 4},
		{ProductID: 3, Quantity: 1},
	})
	require.NoError(t, pending.Save(ctx, p))

	all, err := pending.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, p.Lines, all[0].Lines, "pending lines must round-trip in order")

	now := time.Now().UTC()
	require.NoError(t, pending.MarkAttempt(ctx, p.ID, 1, now))
	all, err = pending.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].Attempts)

	require.NoError(t, pending.Delete(ctx, p.ID))
	all, err = pending.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestOutboxFailedRowsAreRetried drives a row through repeated dispatch
// failures: it must keep coming back from LockBatch until the retry
// ceiling, then stay failed for operator inspection.
func TestOutboxFailedRowsAreRetried(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, orderpg.EnsureSchema(ctx, pool))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := orderpg.NewRepository(log, pool)
	store := orderpg.NewOutboxStore(log, pool)

	o := domain.NewOrder(7, domain.StatusPlaced)
	o.Lines = []domain.OrderLine{{ProductID: 1, Quantity: 1}}
	require.NoError(t, orders.SaveWithOutbox(ctx, o, "OrderPlaced", []byte(`{}`), ""))

	lease := time.Minute
	batch, err := store.LockBatch(ctx, "relay-a", 10, lease)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	id := batch[0].ID

	// A failed dispatch must not strand the row.
	require.NoError(t, store.MarkFailed(ctx, id, "broker down"))
	batch, err = store.LockBatch(ctx, "relay-a", 10, lease)
	require.NoError(t, err)
	require.Len(t, batch, 1, "failed row must be offered again")
	assert.Equal(t, id, batch[0].ID)

	// Exhaust the ceiling; the row then stays failed.
	for i := 0; i < 10; i++ {
		require.NoError(t, store.MarkFailed(ctx, id, "broker down"))
	}
	batch, err = store.LockBatch(ctx, "relay-a", 10, lease)
	require.NoError(t, err)
	assert.Empty(t, batch, "row past the retry ceiling must not be re-leased")
}
