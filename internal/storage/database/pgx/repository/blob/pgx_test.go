package pgx

import (
	"testing"

	pgxDatabase "github.com/jdillenkofer/blobshift/internal/storage/database/pgx"
	"github.com/jdillenkofer/blobshift/internal/storage/database/repository/blob"
	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPgxBlobRepository(t *testing.T) {
	testutils.SkipIfIntegration(t)

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	pgContainer, err := postgres.Run(ctx, "postgres:17.5-alpine3.22",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		postgres.BasicWaitStrategies())
	assert.Nil(t, err)
	defer pgContainer.Terminate(ctx)
	dbUrl, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	assert.Nil(t, err)

	db, err := pgxDatabase.OpenDatabase(dbUrl)
	assert.Nil(t, err)
	defer db.Close()

	blobRepository, err := NewRepository()
	assert.Nil(t, err)

	err = blob.Tester(blobRepository, db)
	assert.Nil(t, err)
}
