package settings

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
)

type jsonSettings struct {
	S3Enabled            *bool   `json:"s3Enabled"`
	S3Endpoint           *string `json:"s3Endpoint"`
	S3Region             *string `json:"s3Region"`
	S3Bucket             *string `json:"s3Bucket"`
	S3AccessKeyId        *string `json:"s3AccessKeyId"`
	S3SecretAccessKey    *string `json:"s3SecretAccessKey"`
	S3UsePathStyle       *bool   `json:"s3UsePathStyle"`
	S3KeyPrefix          *string `json:"s3KeyPrefix"`
	S3KeyStrategy        *string `json:"s3KeyStrategy"`
	DbType               *string `json:"dbType"`
	DbPath               *string `json:"dbPath"`
	DbUrl                *string `json:"dbUrl"`
	PurgeUploadedContent *bool   `json:"purgeUploadedContent"`
	WatchInterval        *int    `json:"watchInterval"`
	BindAddress          *string `json:"bindAddress"`
	MonitoringPort       *int    `json:"monitoringPort"`
	LogLevel             *string `json:"logLevel"`
	OtelExporter         *string `json:"otelExporter"`
	OtelEndpoint         *string `json:"otelEndpoint"`
}

// loadSettingsFromJson tolerates a missing default config file.
// An explicitly requested file must exist.
func loadSettingsFromJson(jsonFile string, required bool) (*Settings, error) {
	jsonData, err := os.ReadFile(jsonFile)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	js := jsonSettings{}
	err = json.Unmarshal(jsonData, &js)
	if err != nil {
		return nil, err
	}
	return &Settings{
		s3Enabled:            js.S3Enabled,
		s3Endpoint:           js.S3Endpoint,
		s3Region:             js.S3Region,
		s3Bucket:             js.S3Bucket,
		s3AccessKeyId:        js.S3AccessKeyId,
		s3SecretAccessKey:    js.S3SecretAccessKey,
		s3UsePathStyle:       js.S3UsePathStyle,
		s3KeyPrefix:          js.S3KeyPrefix,
		s3KeyStrategy:        js.S3KeyStrategy,
		dbType:               js.DbType,
		dbPath:               js.DbPath,
		dbUrl:                js.DbUrl,
		purgeUploadedContent: js.PurgeUploadedContent,
		watchInterval:        js.WatchInterval,
		bindAddress:          js.BindAddress,
		monitoringPort:       js.MonitoringPort,
		logLevel:             js.LogLevel,
		otelExporter:         js.OtelExporter,
		otelEndpoint:         js.OtelEndpoint,
	}, nil
}
