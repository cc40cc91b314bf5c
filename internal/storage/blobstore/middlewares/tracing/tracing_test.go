package tracing

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/storage/blobstore"
	sqlBlobStore "github.com/jdillenkofer/blobshift/internal/storage/blobstore/sql"
	"github.com/jdillenkofer/blobshift/internal/storage/database/repository"
	sqliteDatabase "github.com/jdillenkofer/blobshift/internal/storage/database/sqlite"
	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingBlobStoreMiddlewareRecordsOneSpanPerCall(t *testing.T) {
	testutils.SkipIfIntegration(t)
	spanRecorder := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	previousTracerProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	defer otel.SetTracerProvider(previousTracerProvider)

	ctx := context.Background()
	db, err := sqliteDatabase.OpenDatabase(filepath.Join(t.TempDir(), "blobshift.db"))
	assert.Nil(t, err)
	defer db.Close()
	blobRepository, err := repository.NewBlobRepository(db)
	assert.Nil(t, err)
	innerBlobStore, err := sqlBlobStore.New(blobRepository)
	assert.Nil(t, err)
	middleware, err := New("SqlBlobStore", innerBlobStore)
	assert.Nil(t, err)

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	assert.Nil(t, err)
	_, err = middleware.CountBlobsByStatus(ctx, tx, blob.StatusPending)
	assert.Nil(t, err)
	_, err = middleware.GetBlob(ctx, tx, ulid.Make())
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	assert.Nil(t, tx.Commit())

	spans := spanRecorder.Ended()
	assert.Len(t, spans, 2)
	assert.Equal(t, "SqlBlobStore.CountBlobsByStatus()", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "SqlBlobStore.GetBlob()", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
