package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ismis/core"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repos, err := Open(ctx, &core.Config{StorageEngine: core.StorageMemory})
	require.NoError(t, err)
	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Credentials)
	assert.NotNil(t, repos.Students)
	assert.NotNil(t, repos.Payments)
	assert.NoError(t, repos.Close())

	_, err = Open(ctx, &core.Config{StorageEngine: "mongo"})
	assert.EqualError(t, err, `unknown storage engine "mongo"`)
}
