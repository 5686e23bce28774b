// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// When no file is given, a built-in document wired to the conventional
// environment variables (TENANT_ID, DATABASE_ENDPOINT, INGEST_ENDPOINT,
// DATABASE_NAME, ...) is used instead. A .env file in the working directory is
// loaded into the environment first. Command-line flags override both.
package config
