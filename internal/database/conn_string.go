package database

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildConnString builds a PostgreSQL connection string for database on the
// server at endpoint. The endpoint may omit the scheme; an sslmode already
// present in the endpoint wins over sslMode.
func BuildConnString(endpoint, database, sslMode string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "postgres://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", u.Redacted())
	}

	if database != "" {
		u.Path = "/" + database
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		if sslMode == "" {
			sslMode = "prefer"
		}
		q.Set("sslmode", sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
