package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-archiver/internal/records"
)

var recordColumns = []string{
	"run_id", "project_name", "seed_url", "archive_path", "sha256",
	"size_bytes", "scraped", "failed", "created_at",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestAppendInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	rec := records.ArchiveRecord{
		RunID:       "run-1",
		ProjectName: "example.com_20231114_221320",
		SeedURL:     "https://example.com",
		ArchivePath: "/out/example.com_20231114_221320.zip",
		SHA256:      "abc123",
		SizeBytes:   2048,
		Scraped:     3,
		Failed:      1,
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO archive_records").
		WithArgs(rec.RunID, rec.ProjectName, rec.SeedURL, rec.ArchivePath, rec.SHA256,
			rec.SizeBytes, rec.Scraped, rec.Failed, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	require.ErrorIs(t, store.Append(context.Background(), records.ArchiveRecord{}), records.ErrInvalidRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendWrapsExecError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO archive_records").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(boom)

	err := store.Append(context.Background(), records.ArchiveRecord{RunID: "r", ArchivePath: "a.zip", CreatedAt: time.Unix(1, 0)})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "insert archive record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	first := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows(recordColumns).
		AddRow("run-1", "a", "https://a.example", "/out/a.zip", "h1", int64(10), 1, 0, first).
		AddRow("run-2", "b", "https://b.example", "/out/b.zip", "h2", int64(20), 2, 1, first.Add(time.Minute))
	mock.ExpectQuery("SELECT (.+) FROM archive_records").WillReturnRows(rows)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "run-2", list[1].RunID)
	require.Equal(t, int64(20), list[1].SizeBytes)
	require.Equal(t, 1, list[1].Failed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS archive_records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "records; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}
