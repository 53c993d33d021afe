// Package postgrestest starts a throwaway PostgreSQL for tests.
package postgrestest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/k11v/web2app/internal/apppg"
)

// Setup starts PostgreSQL in a container and applies migrations.
// teardown must be called once the database isn't needed.
func Setup(ctx context.Context) (connectionString string, teardown func() error, err error) {
	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	}

	c, err := testcontainers.GenericContainer(ctx, req)
	if err != nil {
		if c != nil {
			_ = c.Terminate(ctx)
		}
		return "", nil, err
	}
	teardown = func() error {
		return c.Terminate(context.Background())
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = teardown()
		return "", nil, err
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = teardown()
		return "", nil, err
	}
	connectionString = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, port.Port())

	if err = apppg.Setup(connectionString); err != nil {
		_ = teardown()
		return "", nil, err
	}

	return connectionString, teardown, nil
}
