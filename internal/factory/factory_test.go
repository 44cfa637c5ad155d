package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/config"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/objectstore"
)

func TestNewStore_Memory(t *testing.T) {
	cfg := config.NewForTesting()
	st, closeFn, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, closeFn(context.Background()))
}

func TestNewStore_SQLite(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "bot.db")
	ctx := context.Background()

	st, closeFn, err := NewStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = closeFn(ctx) }()

	r, err := st.Robots().Create(ctx, &model.Robot{Name: "acme", Credential: model.Credential{PlatformType: model.PlatformCloud}})
	require.NoError(t, err)
	got, err := st.Robots().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
}

func TestNewStore_Unknown(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "cassandra"
	_, _, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)

	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	_, _, err = NewStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestNewBlobStore_MemoryWithoutCredentials(t *testing.T) {
	bs, err := NewBlobStore(context.Background(), config.NewForTesting(), zerolog.Nop())
	require.NoError(t, err)
	_, ok := bs.(*objectstore.Memory)
	assert.True(t, ok)
}

func TestNewNotifier(t *testing.T) {
	cfg := config.NewForTesting()
	n, err := NewNotifier(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, n)

	cfg.NotificationEmail = "bot@acme.test"
	cfg.SMTPHost = "smtp.acme.test"
	n, err = NewNotifier(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, n)
}

func TestNewDirectoryClient(t *testing.T) {
	require.NotNil(t, NewDirectoryClient(config.NewForTesting(), zerolog.Nop()))
}
