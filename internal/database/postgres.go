package database

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDefaults apply unless overridden through Config.Options.
var postgresDefaults = map[string]string{
	"sslmode":          "disable",
	"application_name": "talenthub",
	"connect_timeout":  "5",
}

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := configurePool(db, cfg.Pool); err != nil {
		return nil, err
	}
	return db, nil
}

// buildPostgresDSN renders a libpq keyword/value string. Connection fields
// always come from Config; Options can only add or override parameters.
func buildPostgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	params := []string{
		"host=" + quotePostgresValue(host),
		"port=" + strconv.Itoa(port),
		"user=" + quotePostgresValue(cfg.User),
		"dbname=" + quotePostgresValue(cfg.Name),
	}
	if cfg.Password != "" {
		params = append(params, "password="+quotePostgresValue(cfg.Password))
	}

	options := make(map[string]string, len(postgresDefaults)+len(cfg.Options))
	for key, value := range postgresDefaults {
		options[key] = value
	}
	for key, value := range cfg.Options {
		switch key {
		case "host", "port", "user", "dbname", "password":
			return "", fmt.Errorf("postgres option %q must be set through the connection fields", key)
		}
		options[key] = value
	}

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		params = append(params, key+"="+quotePostgresValue(options[key]))
	}

	return strings.Join(params, " "), nil
}

// quotePostgresValue single-quotes values that are empty or contain spaces,
// quotes or backslashes, escaping the latter two.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, " '\\\t\n") {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}
