package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
)

// Supported drivers.
const (
	DriverSQLite     = "sqlite"
	DriverGormSQLite = "gorm-sqlite"
	DriverPostgres   = "postgres"
)

// Drivers lists every accepted driver name.
var Drivers = []string{DriverSQLite, DriverGormSQLite, DriverPostgres}

// Open selects a backend by driver name. For the SQLite drivers dsn is a
// file path; for postgres it is a libpq connection string or URL.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(dsn)
	case DriverGormSQLite:
		return OpenGorm(gormsqlite.Open(sqliteDSN(dsn)))
	case DriverPostgres:
		return OpenGorm(postgres.Open(dsn))
	}
	return nil, fmt.Errorf("store: unknown driver %q", driver)
}
