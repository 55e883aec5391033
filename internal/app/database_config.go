package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/rosterd/internal/database"
)

// DatabaseOptions converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) DatabaseOptions() (database.Config, error) {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            strings.TrimSpace(c.Path),
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var auth DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg, nil
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = c.Postgres
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		auth = c.MySQL
	default:
		return database.Config{}, fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	dbCfg.Options = auth.Options
	return dbCfg, nil
}
