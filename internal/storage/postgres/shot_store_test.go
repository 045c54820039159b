package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"tweetshot/internal/capture"
)

func TestStoreShotInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewShotStoreWithPool(mock, "captures")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	shot := capture.ShotRecord{
		JobID:       "job-1",
		URL:         "https://x.com/jack/status/20",
		FinalURL:    "https://x.com/jack/status/20",
		ObjectName:  "@jack_20_20231114_221320.jpg",
		BlobURI:     "memory://captures/@jack_20_20231114_221320.jpg",
		FileURL:     "http://localhost:9000/tweetcaptures/@jack_20_20231114_221320.jpg",
		ContentHash: "abc123",
		SizeBytes:   2048,
		Width:       900,
		Height:      900,
		CapturedAt:  now,
		DurationMs:  4200,
	}

	mock.ExpectExec("INSERT INTO captures").
		WithArgs(
			shot.JobID,
			shot.URL,
			shot.FinalURL,
			shot.ObjectName,
			shot.BlobURI,
			shot.FileURL,
			shot.ContentHash,
			shot.SizeBytes,
			shot.Width,
			shot.Height,
			shot.CapturedAt,
			shot.DurationMs,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.StoreShot(context.Background(), shot)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreShotRequiresJobID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewShotStoreWithPool(mock, "captures")
	require.NoError(t, err)

	require.Error(t, store.StoreShot(context.Background(), capture.ShotRecord{}))
}

func TestNewShotStoreWithPool_ValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewShotStoreWithPool(mock, "captures; DROP TABLE users")
	require.Error(t, err)

	store, err := NewShotStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "captures", store.table)
}
