package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveSecret(t *testing.T) {
	const name = "STORY_TEST_SECRET"

	tests := []struct {
		desc string
		env  string
		file string
		want string
	}{
		{desc: "neither set", want: ""},
		{desc: "env only", env: "env-value", want: "env-value"},
		{desc: "file only", file: "file-value\n", want: "file-value"},
		{desc: "file wins over env", env: "env-value", file: "file-value", want: "file-value"},
		{desc: "whitespace trimmed", file: "  padded \n\n", want: "padded"},
		{desc: "empty file", env: "env-value", file: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Setenv(name, tt.env)
			if tt.file != "" || tt.desc == "empty file" {
				t.Setenv(name+"_FILE", writeSecret(t, tt.file))
			} else {
				t.Setenv(name+"_FILE", "")
			}
			got, err := ResolveSecret(name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSecretMissingFile(t *testing.T) {
	t.Setenv("STORY_TEST_MISSING_FILE", "/nonexistent/secret")
	_, err := ResolveSecret("STORY_TEST_MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORY_TEST_MISSING_FILE")
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("STORY_ADMIN_USER", "admin")
	t.Setenv("STORY_ADMIN_PASS", "")
	t.Setenv("STORY_ADMIN_PASS_FILE", writeSecret(t, "s3cret\n"))
	t.Setenv("STORY_OPERATOR_USER", "op")
	t.Setenv("STORY_OPERATOR_PASS", "oppass")
	t.Setenv("STORY_PG_PASSWORD", "pg")

	s, err := LoadSecrets()
	require.NoError(t, err)
	assert.Equal(t, Secrets{
		AdminUser:        "admin",
		AdminPass:        "s3cret",
		OperatorUser:     "op",
		OperatorPass:     "oppass",
		PostgresPassword: "pg",
	}, s)

	t.Setenv("STORY_PG_PASSWORD_FILE", "/nonexistent")
	_, err = LoadSecrets()
	require.Error(t, err)
}
