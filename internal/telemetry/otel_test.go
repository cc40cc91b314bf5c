package telemetry

import (
	"context"
	"testing"

	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
)

func TestSetupOTelSDKWithoutExporter(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	previousTracerProvider := otel.GetTracerProvider()

	shutdown, err := SetupOTelSDK(ctx, Configuration{Exporter: EXPORTER_NONE})
	assert.Nil(t, err)
	assert.Equal(t, previousTracerProvider, otel.GetTracerProvider())
	assert.Nil(t, shutdown(ctx))
}

func TestSetupOTelSDKWithStdoutExporter(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	previousTracerProvider := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previousTracerProvider)

	shutdown, err := SetupOTelSDK(ctx, Configuration{Exporter: EXPORTER_STDOUT})
	assert.Nil(t, err)
	assert.NotEqual(t, previousTracerProvider, otel.GetTracerProvider())
	assert.Nil(t, shutdown(ctx))
}

func TestSetupOTelSDKRejectsUnknownExporter(t *testing.T) {
	testutils.SkipIfIntegration(t)
	_, err := SetupOTelSDK(context.Background(), Configuration{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}
