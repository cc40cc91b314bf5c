package repository

import (
	"errors"

	"github.com/jdillenkofer/blobshift/internal/storage/database"
	postgresBlob "github.com/jdillenkofer/blobshift/internal/storage/database/pgx/repository/blob"
	"github.com/jdillenkofer/blobshift/internal/storage/database/repository/blob"
	sqliteBlob "github.com/jdillenkofer/blobshift/internal/storage/database/sqlite/repository/blob"
)

var errUnknownDatabaseType = errors.New("unknown database type")

func NewBlobRepository(db database.Database) (blob.Repository, error) {
	dbType := db.GetDatabaseType()
	switch dbType {
	case database.DB_TYPE_POSTGRES:
		return postgresBlob.NewRepository()
	case database.DB_TYPE_SQLITE:
		return sqliteBlob.NewRepository()
	}
	return nil, errUnknownDatabaseType
}
