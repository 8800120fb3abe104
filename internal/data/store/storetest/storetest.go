// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/infra/logger"
)

var seq atomic.Int64

// New returns a Container backed by a fresh in-memory sqlite database that
// is closed when the test ends.
func New(t testing.TB) *store.Container {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1))

	s, err := store.New(context.Background(), store.DriverSQLite, dsn, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return store.NewContainer(s)
}
