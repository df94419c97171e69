// Package secrets resolves API keys and tokens from files, configuration
// values or the environment.
package secrets

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Source describes where a secret may come from. File wins over Value, and
// Value wins over Env.
type Source struct {
	// Name is used in error messages.
	Name  string
	File  string
	Value string
	// Env names an environment variable consulted last.
	Env string
}

// Load returns the trimmed secret from the first usable place in src.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	return "", fmt.Errorf("%s is not configured", name)
}

// Redact keeps the last four characters of a secret for log lines.
func Redact(secret string) string {
	n := utf8.RuneCountInString(secret)
	if n <= 8 {
		return strings.Repeat("*", n)
	}
	runes := []rune(secret)
	return "****" + string(runes[n-4:])
}
