package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSources_Embedded(t *testing.T) {
	names, err := Sources()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		assert.True(t, strings.HasSuffix(name, ".sql"), name)
	}
	assert.Equal(t, "00001_read_models.sql", names[0])
}

func TestMigrations_HaveGooseAnnotations(t *testing.T) {
	names, err := Sources()
	require.NoError(t, err)

	for _, name := range names {
		data, err := embedded.ReadFile(migrationsDir + "/" + name)
		require.NoError(t, err)
		assert.Contains(t, string(data), "-- +goose Up", name)
		assert.Contains(t, string(data), "-- +goose Down", name)
	}
}
