//go:build db
// +build db

package scores

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/angelmondragon/guildscore-backend/pkg/config"
	"github.com/angelmondragon/guildscore-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/angelmondragon/guildscore-backend/pkg/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func openPostgres(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("guildscore"),
		postgres.WithUsername("guildscore"),
		postgres.WithPassword("guildscore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := db.New(ctx, config.DBConfig{Driver: config.DriverPostgres, DSN: dsn, MaxOpenConns: 16}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Up(ctx, sqlDB, client.Driver()))

	return NewRepository(client)
}

func TestPostgresStore(t *testing.T) {
	repo := openPostgres(t)
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		_, err := repo.Upsert(ctx, 7, 42, 10, true)
		require.NoError(t, err)
		score, err := repo.IncrementScore(ctx, 7, 42, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(15), score)

		rec, found, err := repo.SetActive(ctx, 7, 42, false)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, ScoreRecord{MemberID: 7, GuildID: 42, Score: 15, Active: false}, rec)

		existed, err := repo.Delete(ctx, 7, 42)
		require.NoError(t, err)
		assert.True(t, existed)
		_, found, err = repo.Get(ctx, 7, 42)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("parallel increments", func(t *testing.T) {
		g, gctx := errgroup.WithContext(ctx)
		for range 200 {
			g.Go(func() error {
				_, err := repo.IncrementScore(gctx, 8, 42, 3)
				return err
			})
		}
		require.NoError(t, g.Wait())

		rec, _, err := repo.Get(ctx, 8, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(600), rec.Score)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := repo.Upsert(ctx, 9, 42, math.MaxInt64, true)
		require.NoError(t, err)
		_, err = repo.IncrementScore(ctx, 9, 42, 1)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeIntegerOverflow))

		rec, _, err := repo.Get(ctx, 9, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), rec.Score)
	})

	t.Run("rank and listing", func(t *testing.T) {
		for member, score := range map[int64]int64{1: 30, 2: 20, 3: 20} {
			_, err := repo.Upsert(ctx, member, 77, score, true)
			require.NoError(t, err)
		}
		rec, found, err := repo.Rank(ctx, 3, 77)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(2), rec.Rank)

		var ids []int64
		for rec, err := range repo.ListActive(ctx, 77, ListOptions{Sort: SortScoreDesc, BatchSize: 1}) {
			require.NoError(t, err)
			ids = append(ids, rec.MemberID)
		}
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})
}
