package pagestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("SCALPEL_INTEGRATION") == "" {
		t.Skip("SCALPEL_INTEGRATION not set")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithUsername("scalpel"),
		postgres.WithPassword("scalpel"),
		postgres.WithDatabase("decks"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(ctx) }) //nolint:errcheck

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Connect(ctx, dsn, "pages")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	rec := PageRecord{Artifact: "q3.pptx", Page: 1, Title: "Draft", Pictures: []string{"Hero"}}
	require.NoError(t, store.Upsert(ctx, rec))
	rec.Title = "Quarterly Review"
	require.NoError(t, store.UpsertAll(ctx, []PageRecord{rec, {Artifact: "q3.pptx", Page: 2}}))

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var count int
	var title string
	var pictures []string
	require.NoError(t, conn.QueryRow(ctx, `SELECT count(*) FROM pages`).Scan(&count))
	require.NoError(t, conn.QueryRow(ctx, `SELECT title, pictures FROM pages WHERE page_number = 1`).Scan(&title, &pictures))
	assert.Equal(t, 2, count)
	assert.Equal(t, "Quarterly Review", title)
	assert.Equal(t, []string{"Hero"}, pictures)
}
