package settings

import (
	"os"
	"strconv"
	"strings"
)

const envKeyPrefix string = "BLOBSHIFT"

const configPathEnvKey string = envKeyPrefix + "_CONFIG"
const s3EnabledEnvKey string = envKeyPrefix + "_S3_ENABLED"
const s3EndpointEnvKey string = envKeyPrefix + "_S3_ENDPOINT"
const s3RegionEnvKey string = envKeyPrefix + "_S3_REGION"
const s3BucketEnvKey string = envKeyPrefix + "_S3_BUCKET"
const s3AccessKeyIdEnvKey string = envKeyPrefix + "_S3_ACCESS_KEY_ID"
const s3SecretAccessKeyEnvKey string = envKeyPrefix + "_S3_SECRET_ACCESS_KEY"
const s3UsePathStyleEnvKey string = envKeyPrefix + "_S3_USE_PATH_STYLE"
const s3KeyPrefixEnvKey string = envKeyPrefix + "_S3_KEY_PREFIX"
const s3KeyStrategyEnvKey string = envKeyPrefix + "_S3_KEY_STRATEGY"
const dbTypeEnvKey string = envKeyPrefix + "_DB_TYPE"
const dbPathEnvKey string = envKeyPrefix + "_DB_PATH"
const dbUrlEnvKey string = envKeyPrefix + "_DB_URL"
const purgeUploadedContentEnvKey string = envKeyPrefix + "_PURGE_UPLOADED_CONTENT"
const watchIntervalEnvKey string = envKeyPrefix + "_WATCH_INTERVAL"
const bindAddressEnvKey string = envKeyPrefix + "_BIND_ADDRESS"
const monitoringPortEnvKey string = envKeyPrefix + "_MONITORING_PORT"
const logLevelEnvKey string = envKeyPrefix + "_LOG_LEVEL"
const otelExporterEnvKey string = envKeyPrefix + "_OTEL_EXPORTER"
const otelEndpointEnvKey string = envKeyPrefix + "_OTEL_ENDPOINT"

func getStringFromEnv(envKey string) *string {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	return &val
}

func getIntFromEnv(envKey string) *int {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	int64Val, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return nil
	}
	intVal := int(int64Val)
	return &intVal
}

func getBoolFromEnv(envKey string) *bool {
	val := os.Getenv(envKey)
	val = strings.ToLower(val)
	if val == "" {
		return nil
	}
	retval := val == "1" || val == "t" || val == "true"
	return &retval
}

func loadSettingsFromEnv() (*Settings, error) {
	return &Settings{
		s3Enabled:            getBoolFromEnv(s3EnabledEnvKey),
		s3Endpoint:           getStringFromEnv(s3EndpointEnvKey),
		s3Region:             getStringFromEnv(s3RegionEnvKey),
		s3Bucket:             getStringFromEnv(s3BucketEnvKey),
		s3AccessKeyId:        getStringFromEnv(s3AccessKeyIdEnvKey),
		s3SecretAccessKey:    getStringFromEnv(s3SecretAccessKeyEnvKey),
		s3UsePathStyle:       getBoolFromEnv(s3UsePathStyleEnvKey),
		s3KeyPrefix:          getStringFromEnv(s3KeyPrefixEnvKey),
		s3KeyStrategy:        getStringFromEnv(s3KeyStrategyEnvKey),
		dbType:               getStringFromEnv(dbTypeEnvKey),
		dbPath:               getStringFromEnv(dbPathEnvKey),
		dbUrl:                getStringFromEnv(dbUrlEnvKey),
		purgeUploadedContent: getBoolFromEnv(purgeUploadedContentEnvKey),
		watchInterval:        getIntFromEnv(watchIntervalEnvKey),
		bindAddress:          getStringFromEnv(bindAddressEnvKey),
		monitoringPort:       getIntFromEnv(monitoringPortEnvKey),
		logLevel:             getStringFromEnv(logLevelEnvKey),
		otelExporter:         getStringFromEnv(otelExporterEnvKey),
		otelEndpoint:         getStringFromEnv(otelEndpointEnvKey),
	}, nil
}
