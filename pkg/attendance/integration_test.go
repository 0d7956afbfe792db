//go:build integration

package attendance

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestPostgresStore(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "kiosk",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, fmt.Sprintf("postgres://test:test@%s/kiosk?sslmode=disable", addr), true)
	require.NoError(t, err)
	defer store.Close()

	var empty bytes.Buffer
	require.NoError(t, store.Dump(ctx, &empty))
	assert.Zero(t, empty.Len())

	require.NoError(t, store.Append(ctx, NewRecord("001", "张三", "", fixedTime())))
	require.NoError(t, store.Append(ctx, NewRecord("002", "李四", KindDemo, fixedTime())))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "001", records[0].EmployeeID)
	assert.Equal(t, KindNormal, records[0].Kind)
	assert.Equal(t, KindDemo, records[1].Kind)

	var buf bytes.Buffer
	require.NoError(t, store.Dump(ctx, &buf))
	assert.Contains(t, buf.String(), "employee_id,name,date,time,timestamp,kind\n")
	assert.Contains(t, buf.String(), "002,李四,2024-03-15,08:59:07,2024-03-15 08:59:07,demo")

	// Migrate is idempotent.
	require.NoError(t, store.Migrate(ctx))
}

func TestRedisCooldown(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379")

	ctx := context.Background()
	c := NewRedisCooldown(addr, 2*time.Second)
	defer c.Close()
	require.True(t, c.Healthy(ctx))

	now := time.Now()
	ok, err := c.Reserve(ctx, "001", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Reserve(ctx, "001", now)
	require.NoError(t, err)
	assert.False(t, ok)

	// A second kiosk shares the window.
	other := NewRedisCooldown(addr, 2*time.Second)
	defer other.Close()
	ok, _ = other.Reserve(ctx, "001", now)
	assert.False(t, ok)

	// A released reservation is free again.
	require.NoError(t, c.Release(ctx, "001"))
	ok, err = other.Reserve(ctx, "001", now)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(2500 * time.Millisecond)
	ok, err = c.Reserve(ctx, "001", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}
