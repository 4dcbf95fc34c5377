package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tucoflyer/botcontrol/internal/storage"
	"github.com/tucoflyer/botcontrol/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInit_UnreachableServer(t *testing.T) {
	b := New("host=127.0.0.1 port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1", nil)

	err := b.Init()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to postgres")

	assert.NoError(t, b.Close())
	assert.Error(t, b.StartSession(core.NewSession(time.Now(), "c", "f", 4)))
}
