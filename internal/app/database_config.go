package app

import (
	"strings"

	"github.com/visicontrol/visicontrol/internal/database"
)

// DatabaseSettings converts DatabaseConfig into the database package representation.
// Host based parameters are taken from the section matching the driver.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
	}

	var hostCfg *DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql", "pg":
		hostCfg = &c.Postgres
	case "mysql", "mariadb":
		hostCfg = &c.MySQL
	}

	if hostCfg != nil {
		cfg.Host = hostCfg.Host
		cfg.Port = hostCfg.Port
		cfg.Name = hostCfg.Database
		cfg.User = hostCfg.Username
		cfg.Password = hostCfg.Password
		cfg.Options = hostCfg.Options
	}

	return cfg
}

// AdminSeed converts the seed_admin section into database seed parameters.
func (c AuthConfig) AdminSeed() database.AdminSeed {
	return database.AdminSeed{
		Email:    c.SeedAdmin.Email,
		Password: c.SeedAdmin.Password,
		Name:     c.SeedAdmin.Name,
		LastName: c.SeedAdmin.LastName,
	}
}
