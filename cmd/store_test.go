package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cwrk-planet/chat-relay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	repo, closeFn, err := openStore(ctx, config.Store{Driver: config.DriverMemory})
	require.NoError(t, err)
	closeFn()
	assert.NotNil(t, repo)

	repo, closeFn, err = openStore(ctx, config.Store{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "chat.db"),
	})
	require.NoError(t, err)
	defer closeFn()

	m, err := repo.Append(ctx, "general", "alice", "hi")
	require.NoError(t, err)
	got, err := repo.Recent(ctx, "general", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, m.CreatedAt.Equal(got[0].CreatedAt))

	_, _, err = openStore(ctx, config.Store{Driver: "mongo"})
	assert.Error(t, err)
}

func TestNewVerifier(t *testing.T) {
	v, err := newVerifier(config.JWT{Alg: "HS256"})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = newVerifier(config.JWT{Alg: "HS256", Secret: "s3cret"})
	require.NoError(t, err)
	assert.NotNil(t, v)

	_, err = newVerifier(config.JWT{Alg: "RS256", PublicKeyPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}
