package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_TYPE", "SERIAL_WRITES", "MAX_COMPONENT_DEPTH", "DB_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("DB_DATABASE", "content.db")
	t.Setenv("SCHEMA_PATH", "./schema")
	t.Setenv("PRIVATE_ATTRIBUTES", " token , ,internalNote")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 32, cfg.MaxComponentDepth)
	assert.Equal(t, []string{"token", "internalNote"}, cfg.PrivateAttributes)
	assert.Nil(t, cfg.SerialWritesOverride())
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{"SCHEMA_PATH": "s"}, "DB_DATABASE is required"},
		{"missing schema", map[string]string{"DB_DATABASE": "d"}, "SCHEMA_PATH is required"},
		{"bad db type", map[string]string{"DB_DATABASE": "d", "SCHEMA_PATH": "s", "DB_TYPE": "oracle"}, "unsupported DB_TYPE"},
		{"bad serial writes", map[string]string{"DB_DATABASE": "d", "SCHEMA_PATH": "s", "SERIAL_WRITES": "maybe"}, "SERIAL_WRITES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_DATABASE", "SCHEMA_PATH", "DB_TYPE", "SERIAL_WRITES"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMemoryNeedsNoDatabase(t *testing.T) {
	t.Setenv("DB_TYPE", "memory")
	t.Setenv("DB_DATABASE", "")
	t.Setenv("SCHEMA_PATH", "./schema")
	t.Setenv("SERIAL_WRITES", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NotNil(t, cfg.SerialWritesOverride())
	assert.True(t, *cfg.SerialWritesOverride())
}
