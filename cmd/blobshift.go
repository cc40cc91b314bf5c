package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/http/server"
	"github.com/jdillenkofer/blobshift/internal/lifecycle"
	"github.com/jdillenkofer/blobshift/internal/offload"
	"github.com/jdillenkofer/blobshift/internal/offload/scheduler"
	"github.com/jdillenkofer/blobshift/internal/offload/statusmachine"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
	prometheusUploaderMiddleware "github.com/jdillenkofer/blobshift/internal/offload/uploader/middlewares/prometheus"
	tracingUploaderMiddleware "github.com/jdillenkofer/blobshift/internal/offload/uploader/middlewares/tracing"
	s3Uploader "github.com/jdillenkofer/blobshift/internal/offload/uploader/s3"
	"github.com/jdillenkofer/blobshift/internal/settings"
	"github.com/jdillenkofer/blobshift/internal/sliceutils"
	tracingBlobStoreMiddleware "github.com/jdillenkofer/blobshift/internal/storage/blobstore/middlewares/tracing"
	sqlBlobStore "github.com/jdillenkofer/blobshift/internal/storage/blobstore/sql"
	"github.com/jdillenkofer/blobshift/internal/storage/database"
	databaseConfig "github.com/jdillenkofer/blobshift/internal/storage/database/config"
	"github.com/jdillenkofer/blobshift/internal/storage/database/repository"
	"github.com/jdillenkofer/blobshift/internal/storage/s3client"
	"github.com/jdillenkofer/blobshift/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const subcommandCountBlobs = "count-blobs"
const subcommandResetFailedToPending = "reset-failed-to-pending"
const subcommandResetInProgressToPending = "reset-in-progress-to-pending"
const subcommandUploadPending = "upload-pending"
const subcommandWatch = "watch"

var subcommands = []string{
	subcommandCountBlobs,
	subcommandResetFailedToPending,
	subcommandResetInProgressToPending,
	subcommandUploadPending,
	subcommandWatch,
}

var programLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     programLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	os.Exit(run(ctx, os.Args, os.Stdout, prometheus.DefaultRegisterer, prometheus.DefaultGatherer))
}

func run(ctx context.Context, args []string, stdout io.Writer, registerer prometheus.Registerer, gatherer prometheus.Gatherer) int {
	if len(args) < 2 {
		slog.Info(fmt.Sprintf("Usage: %s %s [options]", args[0], strings.Join(subcommands, "|")))
		return 1
	}

	subcommand := args[1]
	flagSet := flag.NewFlagSet(subcommand, flag.ContinueOnError)
	switch subcommand {
	case subcommandCountBlobs:
		return countBlobs(ctx, flagSet, args[2:], stdout)
	case subcommandResetFailedToPending:
		return resetFailedToPending(ctx, flagSet, args[2:], stdout)
	case subcommandResetInProgressToPending:
		return resetInProgressToPending(ctx, flagSet, args[2:], stdout)
	case subcommandUploadPending:
		return uploadPending(ctx, flagSet, args[2:], stdout, registerer)
	case subcommandWatch:
		return watch(ctx, flagSet, args[2:], registerer, gatherer)
	default:
		slog.Error(fmt.Sprintf("Invalid subcommand: %s. Expected one of %s.", subcommand, strings.Join(sliceutils.Map(func(s string) string { return "'" + s + "'" }, subcommands), ", ")))
		return 1
	}
}

func parseLogLevel(logLevel string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(logLevel))
	return level, err
}

func loadSettings(flagSet *flag.FlagSet, args []string) (*settings.Settings, error) {
	s, err := settings.LoadSettings(flagSet, args)
	if err != nil {
		return nil, err
	}
	level, err := parseLogLevel(s.LogLevel())
	if err != nil {
		return nil, err
	}
	programLevel.Set(level)
	return s, nil
}

// application holds the wired engine and everything that has to be
// stopped or closed once the subcommand is done.
type application struct {
	engine     *offload.Engine
	db         database.Database
	components []lifecycle.Manager
	shutdown   func(context.Context) error
}

// newApplication wires the engine. With the feature flag off nothing is
// opened and every engine operation fails with blob.ErrFeatureDisabled.
func newApplication(ctx context.Context, s *settings.Settings, withUploader bool, registerer prometheus.Registerer) (*application, error) {
	if !s.S3Enabled() {
		engine, err := offload.New(false, nil, nil, offload.Options{})
		if err != nil {
			return nil, err
		}
		return &application{engine: engine}, nil
	}

	app := &application{}
	shutdown, err := telemetry.SetupOTelSDK(ctx, telemetry.Configuration{
		Exporter: s.OtelExporter(),
		Endpoint: s.OtelEndpoint(),
	})
	app.shutdown = shutdown
	if err != nil {
		return nil, err
	}

	dbConfiguration := databaseConfig.DatabaseConfiguration{
		Type:   s.DbType(),
		DbPath: s.DbPath(),
		DbUrl:  s.DbUrl(),
	}
	app.db, err = dbConfiguration.Open()
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	blobRepository, err := repository.NewBlobRepository(app.db)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	blobStore, err := sqlBlobStore.New(blobRepository)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	blobStore, err = tracingBlobStoreMiddleware.New("SqlBlobStore", blobStore)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	err = app.start(ctx, blobStore)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	statusMachine, err := statusmachine.New(app.db, blobStore)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	var blobUploader uploader.Uploader
	if withUploader {
		blobUploader, err = newUploader(ctx, s, registerer)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		err = app.start(ctx, blobUploader)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
	}

	app.engine, err = offload.New(true, statusMachine, blobUploader, offload.Options{
		PurgeUploadedContent: s.PurgeUploadedContent(),
	})
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func newUploader(ctx context.Context, s *settings.Settings, registerer prometheus.Registerer) (uploader.Uploader, error) {
	s3Client, err := s3client.NewClient(ctx, s3client.Configuration{
		Endpoint:        s.S3Endpoint(),
		Region:          s.S3Region(),
		Bucket:          s.S3Bucket(),
		AccessKeyId:     s.S3AccessKeyId(),
		SecretAccessKey: s.S3SecretAccessKey(),
		UsePathStyle:    s.S3UsePathStyle(),
	})
	if err != nil {
		return nil, err
	}
	keyStrategy, err := uploader.NewKeyStrategy(s.S3KeyStrategy(), s.S3KeyPrefix())
	if err != nil {
		return nil, err
	}
	blobUploader, err := s3Uploader.New(s3Client, s.S3Bucket(), keyStrategy)
	if err != nil {
		return nil, err
	}
	blobUploader, err = prometheusUploaderMiddleware.NewUploaderMiddleware(blobUploader, registerer)
	if err != nil {
		return nil, err
	}
	return tracingUploaderMiddleware.New("S3Uploader", blobUploader)
}

func (app *application) start(ctx context.Context, component lifecycle.Manager) error {
	err := component.Start(ctx)
	if err != nil {
		return err
	}
	app.components = append(app.components, component)
	return nil
}

func (app *application) close(ctx context.Context) {
	for i := len(app.components) - 1; i >= 0; i-- {
		err := app.components[i].Stop(ctx)
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't stop component: ", err))
		}
	}
	app.components = nil
	if app.db != nil {
		err := app.db.Close()
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't close database: ", err))
		}
		app.db = nil
	}
	if app.shutdown != nil {
		err := app.shutdown(ctx)
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't shutdown telemetry: ", err))
		}
		app.shutdown = nil
	}
}

func setup(ctx context.Context, flagSet *flag.FlagSet, args []string, withUploader bool, registerer prometheus.Registerer) (*settings.Settings, *application, bool) {
	s, err := loadSettings(flagSet, args)
	if err != nil {
		slog.Error(fmt.Sprint("Error while loading settings: ", err))
		return nil, nil, false
	}
	app, err := newApplication(ctx, s, withUploader, registerer)
	if err != nil {
		slog.Error(fmt.Sprint("Error while setting up blobshift: ", err))
		return nil, nil, false
	}
	return s, app, true
}

func countBlobs(ctx context.Context, flagSet *flag.FlagSet, args []string, stdout io.Writer) int {
	flagSet.Usage = func() {
		fmt.Fprintf(flagSet.Output(), "Usage: %s [options] <%s>\n", subcommandCountBlobs, strings.Join(sliceutils.Map(blob.Status.String, blob.Statuses), "|"))
		flagSet.PrintDefaults()
	}
	_, app, ok := setup(ctx, flagSet, args, false, nil)
	if !ok {
		return 1
	}
	defer app.close(ctx)

	if err := app.engine.EnsureEnabled(); err != nil {
		slog.Error(err.Error())
		return 1
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return 1
	}
	count, err := app.engine.CountBlobs(ctx, flagSet.Arg(0))
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	fmt.Fprintln(stdout, count)
	return 0
}

func resetFailedToPending(ctx context.Context, flagSet *flag.FlagSet, args []string, stdout io.Writer) int {
	_, app, ok := setup(ctx, flagSet, args, false, nil)
	if !ok {
		return 1
	}
	defer app.close(ctx)

	moved, err := app.engine.ResetFailedToPending(ctx)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "%d blobs marked for re-uploading.\n", moved)
	return 0
}

func resetInProgressToPending(ctx context.Context, flagSet *flag.FlagSet, args []string, stdout io.Writer) int {
	_, app, ok := setup(ctx, flagSet, args, false, nil)
	if !ok {
		return 1
	}
	defer app.close(ctx)

	moved, err := app.engine.ResetInProgressToPending(ctx)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "%d stuck blobs marked for re-uploading.\n", moved)
	return 0
}

func registerLimitFlag(flagSet *flag.FlagSet) func() *int {
	limit := flagSet.Int("limit", 0, "upload at most this many blobs per run (0 for no limit)")
	return func() *int {
		if *limit <= 0 {
			return nil
		}
		return limit
	}
}

func uploadPending(ctx context.Context, flagSet *flag.FlagSet, args []string, stdout io.Writer, registerer prometheus.Registerer) int {
	limitAccessor := registerLimitFlag(flagSet)
	_, app, ok := setup(ctx, flagSet, args, true, registerer)
	if !ok {
		return 1
	}
	defer app.close(ctx)

	limit := limitAccessor()
	pending, err := app.engine.PendingCount(ctx)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	if limit != nil && int64(*limit) < pending {
		pending = int64(*limit)
	}
	fmt.Fprintf(stdout, "Uploading %d blobs...\n", pending)

	_, err = app.engine.Run(ctx, offload.RunOptions{Limit: limit})
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	fmt.Fprintln(stdout, "Upload completed.")
	return 0
}

func watch(ctx context.Context, flagSet *flag.FlagSet, args []string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) int {
	limitAccessor := registerLimitFlag(flagSet)
	s, app, ok := setup(ctx, flagSet, args, true, registerer)
	if !ok {
		return 1
	}
	runStillActive := false
	defer func() {
		if runStillActive {
			slog.Warn("Leaving components open for the offload run still in progress")
			return
		}
		app.close(ctx)
	}()

	if _, err := app.engine.PendingCount(ctx); err != nil {
		slog.Error(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	offloadScheduler, err := scheduler.New(app.engine, s.WatchInterval(), offload.RunOptions{Limit: limitAccessor()})
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't create scheduler: ", err))
		return 1
	}

	monitoringHandler := server.SetupMonitoringServer([]database.Database{app.db}, gatherer)
	monitoringAddr := fmt.Sprintf("%v:%v", s.BindAddress(), s.MonitoringPort())
	httpMonitoringServer := &http.Server{
		BaseContext: func(net.Listener) context.Context { return ctx },
		Addr:        monitoringAddr,
		Handler:     monitoringHandler,
	}
	go (func() {
		slog.Info(fmt.Sprintf("Listening with monitoring api on http://%v", monitoringAddr))
		err := httpMonitoringServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("Error while starting monitoring server: %s", err))
			stop()
		}
	})()

	err = offloadScheduler.Start(ctx)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't start scheduler: ", err))
		return 1
	}
	slog.Info(fmt.Sprintf("Offloading pending blobs every %s", s.WatchInterval()))

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err = httpMonitoringServer.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't stop monitoring server: ", err))
	}
	err = offloadScheduler.Stop(context.WithoutCancel(ctx))
	if errors.Is(err, scheduler.ErrRunStillActive) {
		runStillActive = true
	}
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't stop scheduler: ", err))
		return 1
	}
	return 0
}
