package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-idm-docstore/internal/config"
	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/storage/instrumented"
	"github.com/tendant/simple-idm-docstore/pkg/storage/memory"
	"github.com/tendant/simple-idm-docstore/pkg/storage/sqldoc"
)

var discard = slog.New(slog.DiscardHandler)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{StorageBackend: config.BackendMemory}, nil, discard)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Collection{}, b.Collection)
	assert.Equal(t, config.BackendMemory, b.Name)
}

func TestOpen_LogsReadyOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	b, err := Open(context.Background(), &config.Config{StorageBackend: config.BackendMemory, DBTable: "accounts"}, nil, logger)
	require.NoError(t, err)
	defer b.Close()

	var entry map[string]any
	dec := json.NewDecoder(&logs)
	require.NoError(t, dec.Decode(&entry))
	assert.Equal(t, "storage backend ready", entry["msg"])
	assert.Equal(t, config.BackendMemory, entry["backend"])
	assert.Equal(t, "accounts", entry["collection"])
	assert.False(t, dec.More())
}

func TestOpen_SQLiteProvisionsAndInstruments(t *testing.T) {
	ctx := context.Background()
	metrics := instrumented.NewMetrics(prometheus.NewRegistry())
	cfg := &config.Config{
		StorageBackend: config.BackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "idm.db"),
		DBTable:        "accounts",
	}

	b, err := Open(ctx, cfg, metrics, discard)
	require.NoError(t, err)
	defer b.Close()

	wrapped, ok := b.Collection.(*instrumented.Collection)
	require.True(t, ok)
	assert.IsType(t, &sqldoc.Collection{}, wrapped.Unwrap())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues(instrumented.OpEnsure, "ok")))

	a := domain.NewAccount()
	a.UserName = "alice"
	require.NoError(t, b.Collection.AddOrReplace(ctx, a))
	found, ok, err := b.Collection.FindByKey(ctx, a.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", found.UserName)
}

func TestOpen_InvalidTable(t *testing.T) {
	cfg := &config.Config{
		StorageBackend: config.BackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "idm.db"),
		DBTable:        "accounts; drop table x",
	}

	_, err := Open(context.Background(), cfg, nil, discard)
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StorageBackend: "mongo"}, nil, discard)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestClose_Idempotent(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{
		StorageBackend: config.BackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "idm.db"),
		DBTable:        "accounts",
	}, nil, discard)
	require.NoError(t, err)

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
