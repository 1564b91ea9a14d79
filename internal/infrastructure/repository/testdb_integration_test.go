package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mohammadpnp/school-import/internal/infrastructure/db/migrations"
)

type testDB struct {
	gorm *gorm.DB
	pool *pgxpool.Pool
}

// openTestDB migrates the database behind TEST_DATABASE_URL and empties
// every table. Tests skip when the variable is not set.
func openTestDB(t *testing.T) testDB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	sqlDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(sqlDB, "."))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`TRUNCATE student_imports, teacher_imports, import_batches, students, teachers, users, grades, branches RESTART IDENTITY CASCADE`).Error)

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return testDB{gorm: db, pool: pool}
}

func seedBranch(t *testing.T, db *gorm.DB, code string, capacity *int64, grades ...string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.Raw(`INSERT INTO branches (code, name, capacity) VALUES (?, ?, ?) RETURNING id`, code, code+" campus", capacity).Scan(&id).Error)
	for _, grade := range grades {
		require.NoError(t, db.Exec(`INSERT INTO grades (branch_id, name) VALUES (?, ?)`, id, grade).Error)
	}
	return id
}
