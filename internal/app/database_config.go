package app

import (
	"strings"

	"github.com/charlesng35/mentorhub/internal/database"
)

// DatabaseSettings converts DatabaseConfig into database.Config. Host credentials are taken
// from the section matching the selected driver.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver:       strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:         c.Path,
		DSN:          c.DSN,
		Options:      c.Options,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}
