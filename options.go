package geodex

import "go.uber.org/zap"

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string
	addrs    []string
	username string
	password string
	dsn      string

	lenientDates bool
	logger       *zap.Logger
}

// WithRedis selects the redis backend.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
	}
}

// WithRedisAuth sets redis credentials.
func WithRedisAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithPostgres selects the postgres backend.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	}
}

// WithMemory selects the in-memory backend. The default.
func WithMemory() Option {
	return func(c *clientConfig) {
		c.driver = "memory"
	}
}

// WithLenientDates widens datetime-range index bounds to absorb sub-second
// timestamp jitter between versions of a document.
func WithLenientDates() Option {
	return func(c *clientConfig) {
		c.lenientDates = true
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = log
	}
}
