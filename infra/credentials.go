package infra

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ReadCredential returns one key from the shared credentials file, or "" when
// the file or key is absent.
func ReadCredential(path, key string) string {
	env, err := godotenv.Read(path)
	if err != nil {
		return ""
	}
	return env[key]
}

// UpdateCredentials sets keys in the shared credentials file, creating it if
// needed. Unrelated entries are preserved.
func UpdateCredentials(path string, values map[string]string) error {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, rerr := godotenv.Read(path)
		if rerr != nil {
			return fmt.Errorf("infra: read credentials file %s: %v", path, rerr)
		}
		env = existing
	}
	for k, v := range values {
		env[k] = v
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("infra: write credentials file %s: %v", path, err)
	}
	return nil
}
