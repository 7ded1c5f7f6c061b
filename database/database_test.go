package database_test

import (
	"context"
	"testing"

	"github.com/scotthooker/commerce-stripe/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	client, err := database.NewRedisClient(context.Background(), "not-a-redis-url")
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "invalid Redis URL")
}

func TestClose_NilDB(t *testing.T) {
	assert.NoError(t, database.Close(nil))
}
