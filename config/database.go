package config

import (
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
)

var _ persistence.Config = Database{}

func (d Database) GetDebug() bool {
	return d.Debug
}

func (d Database) GetDriver() string {
	return d.Driver
}

// GetServer returns the SQLite DSN
func (d Database) GetServer() string {
	return d.URL
}

func (d Database) GetDatabase() string {
	return d.MongoDatabase
}

func (d Database) GetPingTimeout() time.Duration {
	if d.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return d.PingTimeout
}

func (d Database) GetOtelIdentifier() string {
	return ""
}
