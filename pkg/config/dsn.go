package config

import (
	"fmt"
	"net/url"
	"strings"
)

// databaseHost extracts the host from a connection string in either the
// postgres:// URL form or the key/value form lib/pq also accepts.
func databaseHost(dsn string) (string, error) {
	if !strings.Contains(dsn, "://") {
		for _, field := range strings.Fields(dsn) {
			if host, ok := strings.CutPrefix(field, "host="); ok {
				return host, nil
			}
		}
		return "", nil
	}

	u, err := url.Parse(strings.Replace(dsn, "postgresql://", "postgres://", 1))
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" {
		return "", fmt.Errorf("invalid database URL scheme %q", u.Scheme)
	}
	return u.Hostname(), nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(host) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
