package settings

import (
	"flag"
)

func wasSet(flagSet *flag.FlagSet, name string) bool {
	found := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func registerStringFlag(flagSet *flag.FlagSet, name string, defaultValue string, description string) func() *string {
	stringVar := flagSet.String(name, defaultValue, description)
	return func() *string {
		if !wasSet(flagSet, name) {
			return nil
		}
		return stringVar
	}
}

func registerIntFlag(flagSet *flag.FlagSet, name string, defaultValue int, description string) func() *int {
	intVar := flagSet.Int(name, defaultValue, description)
	return func() *int {
		if !wasSet(flagSet, name) {
			return nil
		}
		return intVar
	}
}

func registerBoolFlag(flagSet *flag.FlagSet, name string, defaultValue bool, description string) func() *bool {
	boolVar := flagSet.Bool(name, defaultValue, description)
	return func() *bool {
		if !wasSet(flagSet, name) {
			return nil
		}
		return boolVar
	}
}

func loadSettingsFromCmdArgs(flagSet *flag.FlagSet, args []string) (*Settings, *string, error) {
	configPathAccessor := registerStringFlag(flagSet, "config", defaultConfigPath, "path of the json config file")
	s3EnabledAccessor := registerBoolFlag(flagSet, "s3Enabled", false, "enable offloading blobs to s3")
	s3EndpointAccessor := registerStringFlag(flagSet, "s3Endpoint", "", "endpoint of an s3 compatible object store (empty for aws)")
	s3RegionAccessor := registerStringFlag(flagSet, "s3Region", defaultS3Region, "the region of the bucket")
	s3BucketAccessor := registerStringFlag(flagSet, "s3Bucket", "", "the bucket blobs are uploaded to")
	s3AccessKeyIdAccessor := registerStringFlag(flagSet, "s3AccessKeyId", "", "the access key id (empty for the default credential chain)")
	s3SecretAccessKeyAccessor := registerStringFlag(flagSet, "s3SecretAccessKey", "", "the secret access key")
	s3UsePathStyleAccessor := registerBoolFlag(flagSet, "s3UsePathStyle", false, "use path style addressing")
	s3KeyPrefixAccessor := registerStringFlag(flagSet, "s3KeyPrefix", "", "prefix prepended to every object key")
	s3KeyStrategyAccessor := registerStringFlag(flagSet, "s3KeyStrategy", defaultS3KeyStrategy, "object key layout (digest or sharded)")
	dbTypeAccessor := registerStringFlag(flagSet, "dbType", defaultDbType, "the database type (sqlite or postgres)")
	dbPathAccessor := registerStringFlag(flagSet, "dbPath", defaultDbPath, "path of the sqlite database")
	dbUrlAccessor := registerStringFlag(flagSet, "dbUrl", "", "connection url of the postgres database")
	purgeUploadedContentAccessor := registerBoolFlag(flagSet, "purgeUploadedContent", defaultPurgeUploadedContent, "drop the local content once a blob is uploaded")
	watchIntervalAccessor := registerIntFlag(flagSet, "watchInterval", defaultWatchIntervalSeconds, "seconds between two offload runs of the watch command")
	bindAddressAccessor := registerStringFlag(flagSet, "bindAddress", defaultBindAddress, "the address the monitoring socket is bound to")
	monitoringPortAccessor := registerIntFlag(flagSet, "monitoringPort", defaultMonitoringPort, "the port serving /metrics and /health")
	logLevelAccessor := registerStringFlag(flagSet, "logLevel", defaultLogLevel, "log level (debug, info, warn or error)")
	otelExporterAccessor := registerStringFlag(flagSet, "otelExporter", defaultOtelExporter, "trace exporter (none, stdout or otlp)")
	otelEndpointAccessor := registerStringFlag(flagSet, "otelEndpoint", "", "endpoint of the otlp http trace collector")

	err := flagSet.Parse(args)
	if err != nil {
		return nil, nil, err
	}

	return &Settings{
		s3Enabled:            s3EnabledAccessor(),
		s3Endpoint:           s3EndpointAccessor(),
		s3Region:             s3RegionAccessor(),
		s3Bucket:             s3BucketAccessor(),
		s3AccessKeyId:        s3AccessKeyIdAccessor(),
		s3SecretAccessKey:    s3SecretAccessKeyAccessor(),
		s3UsePathStyle:       s3UsePathStyleAccessor(),
		s3KeyPrefix:          s3KeyPrefixAccessor(),
		s3KeyStrategy:        s3KeyStrategyAccessor(),
		dbType:               dbTypeAccessor(),
		dbPath:               dbPathAccessor(),
		dbUrl:                dbUrlAccessor(),
		purgeUploadedContent: purgeUploadedContentAccessor(),
		watchInterval:        watchIntervalAccessor(),
		bindAddress:          bindAddressAccessor(),
		monitoringPort:       monitoringPortAccessor(),
		logLevel:             logLevelAccessor(),
		otelExporter:         otelExporterAccessor(),
		otelEndpoint:         otelEndpointAccessor(),
	}, configPathAccessor(), nil
}
