package database

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	want := []string{"001_schema.sql", "002_recordings_unique_bot.sql", "003_bots_sync_checked.sql"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setupMock func(pgxmock.PgxPoolIface)
		wantErr   bool
	}{
		{
			name: "runs and records every migration on a fresh database",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
					WillReturnResult(pgxmock.NewResult("CREATE", 0))
				mock.ExpectQuery(`SELECT name FROM schema_migrations`).
					WillReturnRows(pgxmock.NewRows([]string{"name"}))
				mock.ExpectExec(`CREATE TABLE IF NOT EXISTS recall_bots`).
					WillReturnResult(pgxmock.NewResult("CREATE", 0))
				mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("001_schema.sql").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec(`DELETE FROM recordings r`).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
				mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_recordings_unique_bot.sql").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec(`ADD COLUMN IF NOT EXISTS sync_checked_at`).
					WillReturnResult(pgxmock.NewResult("ALTER", 0))
				mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("003_bots_sync_checked.sql").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "skips applied migrations",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
					WillReturnResult(pgxmock.NewResult("CREATE", 0))
				mock.ExpectQuery(`SELECT name FROM schema_migrations`).
					WillReturnRows(pgxmock.NewRows([]string{"name"}).
						AddRow("001_schema.sql").
						AddRow("002_recordings_unique_bot.sql"))
				mock.ExpectExec(`ADD COLUMN IF NOT EXISTS sync_checked_at`).
					WillReturnResult(pgxmock.NewResult("ALTER", 0))
				mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("003_bots_sync_checked.sql").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "stops at first failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
					WillReturnResult(pgxmock.NewResult("CREATE", 0))
				mock.ExpectQuery(`SELECT name FROM schema_migrations`).
					WillReturnRows(pgxmock.NewRows([]string{"name"}))
				mock.ExpectExec(`CREATE TABLE IF NOT EXISTS recall_bots`).
					WillReturnError(errors.New("permission denied"))
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create pgx mock: %v", err)
			}
			defer mock.Close()
			tc.setupMock(mock)

			err = Migrate(context.Background(), mock)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Migrate error = %v, wantErr %v", err, tc.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}
