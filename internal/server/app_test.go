package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/config"
	"github.com/dmitrijs2005/medkeeper/internal/server/notify"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/dmitrijs2005/medkeeper/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseDriver = config.DriverMemory
	c.StorageDir = t.TempDir()
	return c
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	b, err := openBackend(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &registry.MemoryBackend{}, b)

	c.DatabaseDriver = config.DriverSQLite
	c.DatabaseDSN = filepath.Join(t.TempDir(), "medkeeper.db")
	b, err = openBackend(ctx, c)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	c.DatabaseDriver = "mysql"
	_, err = openBackend(ctx, c)
	assert.Error(t, err)
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	docs, err := openStorage(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, docs)

	c.StorageDir = ""
	docs, err = openStorage(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, docs)
}

func TestNewSender(t *testing.T) {
	c := testConfig(t)

	s, err := newSender(c, logging.Nop{})
	require.NoError(t, err)
	assert.IsType(t, &notify.LogSender{}, s)

	c.SMTPHost = "mail.example"
	_, err = newSender(c, logging.Nop{})
	assert.Error(t, err, "sender address is required")

	c.SMTPFrom = "clinic@example.com"
	s, err = newSender(c, logging.Nop{})
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPSender{}, s)
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	app, err := newApp(context.Background(), testConfig(t), logging.Nop{})
	require.NoError(t, err)
	assert.Empty(t, app.sources)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestApp_RunFailsOnBadAddress(t *testing.T) {
	c := testConfig(t)
	c.EndpointAddrGRPC = "127.0.0.1:99999"

	app, err := newApp(context.Background(), c, logging.Nop{})
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()))
}
