package app

import (
	"strings"

	"github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/database"
	"github.com/charlesng35/talenthub/internal/events"
	"github.com/charlesng35/talenthub/internal/realtime"
)

// ConnectionConfig converts DatabaseConfig into the parameters expected by database.Open.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Options = host.Options
	cfg.Pool = database.PoolConfig{
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
	}
	return cfg
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// HubOptions converts RealtimeConfig into hub options accepting origins.
func (c RealtimeConfig) HubOptions(origins []string) realtime.Options {
	return realtime.Options{
		HandshakeTimeout: c.HandshakeTimeout,
		SendBuffer:       c.SendBuffer,
		PingInterval:     c.PingInterval,
		AllowedOrigins:   origins,
	}
}

// PublisherConfig converts AMQPSettings into the publisher configuration.
func (c AMQPSettings) PublisherConfig() events.AMQPConfig {
	return events.AMQPConfig{
		URL:            c.URL,
		Exchange:       c.Exchange,
		RetryAttempts:  c.RetryAttempts,
		RetryDelay:     c.RetryDelay,
		PublishTimeout: c.PublishTimeout,
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c StorageConfig) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadMB) << 20
}

// Origins returns the browser origins allowed to call the API: the client URL
// followed by any extra allowed origins, without duplicates.
func (c ServerConfig) Origins() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, origin := range append([]string{c.ClientURL}, c.AllowedOrigins...) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	return out
}
