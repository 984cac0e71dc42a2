package app

import (
	"strings"

	"github.com/charlesng35/estateportal/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(c.Postgres.Host)
		dbCfg.Port = c.Postgres.Port
		dbCfg.Name = strings.TrimSpace(c.Postgres.Database)
		dbCfg.User = strings.TrimSpace(c.Postgres.Username)
		dbCfg.Password = c.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(c.MySQL.Host)
		dbCfg.Port = c.MySQL.Port
		dbCfg.Name = strings.TrimSpace(c.MySQL.Database)
		dbCfg.User = strings.TrimSpace(c.MySQL.Username)
		dbCfg.Password = c.MySQL.Password
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

// SeedOptions returns the demo seeding options.
func (c DatabaseConfig) SeedOptions() database.SeedOptions {
	return database.SeedOptions{DemoOrganizationID: strings.TrimSpace(c.DemoOrganizationID)}
}
