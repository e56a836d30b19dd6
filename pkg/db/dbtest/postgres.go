//go:build integration

package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/foodmart/foodmart-backend/pkg/config"
	"github.com/foodmart/foodmart-backend/pkg/db"
	"github.com/foodmart/foodmart-backend/pkg/migrate"
)

// Postgres starts a disposable Postgres container, applies the embedded migrations and
// returns a pooled client. The container is terminated on test cleanup.
func Postgres(t testing.TB) *db.Client {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("foodmart"),
		postgres.WithUsername("foodmart"),
		postgres.WithPassword("foodmart"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	client, err := db.New(ctx, config.DBConfig{
		DSN:          dsn,
		Driver:       db.DriverPostgres,
		MaxOpenConns: 10,
		LockTimeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := migrate.Run(ctx, sqlDB, "", "up"); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return client
}
