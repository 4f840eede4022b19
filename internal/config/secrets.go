package config

import (
	"fmt"
	"os"
	"strings"
)

// EnvPrefix prefixes every secret environment variable.
const EnvPrefix = "STORY_"

// ResolveSecret reads envName using the *_FILE convention: when
// envName+"_FILE" names a file, its trimmed content wins over envName.
// Neither being set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Secrets holds every credential the service reads from the environment.
type Secrets struct {
	AdminUser        string
	AdminPass        string
	OperatorUser     string
	OperatorPass     string
	PostgresPassword string
}

// LoadSecrets resolves STORY_ADMIN_USER, STORY_ADMIN_PASS,
// STORY_OPERATOR_USER, STORY_OPERATOR_PASS and STORY_PG_PASSWORD.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"ADMIN_USER", &s.AdminUser},
		{"ADMIN_PASS", &s.AdminPass},
		{"OPERATOR_USER", &s.OperatorUser},
		{"OPERATOR_PASS", &s.OperatorPass},
		{"PG_PASSWORD", &s.PostgresPassword},
	} {
		v, err := ResolveSecret(EnvPrefix + f.name)
		if err != nil {
			return Secrets{}, err
		}
		*f.dst = v
	}
	return s, nil
}
