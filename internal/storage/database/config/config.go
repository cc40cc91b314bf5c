package config

import (
	"errors"

	"github.com/jdillenkofer/blobshift/internal/storage/database"
	"github.com/jdillenkofer/blobshift/internal/storage/database/pgx"
	"github.com/jdillenkofer/blobshift/internal/storage/database/sqlite"
)

var ErrUnknownDatabaseType = errors.New("unknown database type")
var ErrMissingDbUrl = errors.New("dbUrl is required for postgres databases")

type DatabaseConfiguration struct {
	Type   string
	DbPath string
	DbUrl  string
}

func (c *DatabaseConfiguration) Open() (database.Database, error) {
	switch c.Type {
	case database.DB_TYPE_SQLITE:
		return sqlite.OpenDatabase(c.DbPath)
	case database.DB_TYPE_POSTGRES:
		if c.DbUrl == "" {
			return nil, ErrMissingDbUrl
		}
		return pgx.OpenDatabase(c.DbUrl)
	}
	return nil, ErrUnknownDatabaseType
}
