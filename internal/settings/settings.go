package settings

import (
	"flag"
	"reflect"
	"time"
	"unsafe"

	"github.com/jdillenkofer/blobshift/internal/ptrutils"
)

const defaultConfigPath = "config.json"
const defaultS3Region = "us-east-1"
const defaultS3KeyStrategy = "digest"
const defaultDbType = "sqlite"
const defaultDbPath = "./data/blobshift.db"
const defaultPurgeUploadedContent = true
const defaultWatchIntervalSeconds = 60
const defaultBindAddress = "0.0.0.0"
const defaultMonitoringPort = 9090
const defaultLogLevel = "info"
const defaultOtelExporter = "none"

const mergableTagKey = "mergable"

type Settings struct {
	s3Enabled            *bool   `mergable:""`
	s3Endpoint           *string `mergable:""`
	s3Region             *string `mergable:""`
	s3Bucket             *string `mergable:""`
	s3AccessKeyId        *string `mergable:""`
	s3SecretAccessKey    *string `mergable:""`
	s3UsePathStyle       *bool   `mergable:""`
	s3KeyPrefix          *string `mergable:""`
	s3KeyStrategy        *string `mergable:""`
	dbType               *string `mergable:""`
	dbPath               *string `mergable:""`
	dbUrl                *string `mergable:""`
	purgeUploadedContent *bool   `mergable:""`
	watchInterval        *int    `mergable:""`
	bindAddress          *string `mergable:""`
	monitoringPort       *int    `mergable:""`
	logLevel             *string `mergable:""`
	otelExporter         *string `mergable:""`
	otelEndpoint         *string `mergable:""`
}

// S3Enabled is the feature flag of the offload engine.
func (s *Settings) S3Enabled() bool {
	return ptrutils.ValueOrDefault(s.s3Enabled, false)
}

func (s *Settings) S3Endpoint() string {
	return ptrutils.ValueOrDefault(s.s3Endpoint, "")
}

func (s *Settings) S3Region() string {
	return ptrutils.ValueOrDefault(s.s3Region, defaultS3Region)
}

func (s *Settings) S3Bucket() string {
	return ptrutils.ValueOrDefault(s.s3Bucket, "")
}

func (s *Settings) S3AccessKeyId() string {
	return ptrutils.ValueOrDefault(s.s3AccessKeyId, "")
}

func (s *Settings) S3SecretAccessKey() string {
	return ptrutils.ValueOrDefault(s.s3SecretAccessKey, "")
}

func (s *Settings) S3UsePathStyle() bool {
	return ptrutils.ValueOrDefault(s.s3UsePathStyle, false)
}

func (s *Settings) S3KeyPrefix() string {
	return ptrutils.ValueOrDefault(s.s3KeyPrefix, "")
}

func (s *Settings) S3KeyStrategy() string {
	return ptrutils.ValueOrDefault(s.s3KeyStrategy, defaultS3KeyStrategy)
}

func (s *Settings) DbType() string {
	return ptrutils.ValueOrDefault(s.dbType, defaultDbType)
}

func (s *Settings) DbPath() string {
	return ptrutils.ValueOrDefault(s.dbPath, defaultDbPath)
}

func (s *Settings) DbUrl() string {
	return ptrutils.ValueOrDefault(s.dbUrl, "")
}

func (s *Settings) PurgeUploadedContent() bool {
	return ptrutils.ValueOrDefault(s.purgeUploadedContent, defaultPurgeUploadedContent)
}

func (s *Settings) WatchInterval() time.Duration {
	seconds := ptrutils.ValueOrDefault(s.watchInterval, defaultWatchIntervalSeconds)
	if seconds <= 0 {
		seconds = defaultWatchIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (s *Settings) BindAddress() string {
	return ptrutils.ValueOrDefault(s.bindAddress, defaultBindAddress)
}

func (s *Settings) MonitoringPort() int {
	return ptrutils.ValueOrDefault(s.monitoringPort, defaultMonitoringPort)
}

func (s *Settings) LogLevel() string {
	return ptrutils.ValueOrDefault(s.logLevel, defaultLogLevel)
}

func (s *Settings) OtelExporter() string {
	return ptrutils.ValueOrDefault(s.otelExporter, defaultOtelExporter)
}

func (s *Settings) OtelEndpoint() string {
	return ptrutils.ValueOrDefault(s.otelEndpoint, "")
}

func getUnexportedField(field reflect.Value) interface{} {
	return reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem().Interface()
}

func setUnexportedField(field reflect.Value, value interface{}) {
	reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem().Set(reflect.ValueOf(value))
}

func isNilish(val any) bool {
	if val == nil {
		return true
	}

	v := reflect.ValueOf(val)
	k := v.Kind()
	switch k {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer,
		reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}

	return false
}

func (s *Settings) merge(other *Settings) {
	fields := reflect.VisibleFields(reflect.TypeOf(other).Elem())
	sStruct := reflect.ValueOf(s).Elem()
	otherStruct := reflect.ValueOf(other).Elem()

	for _, field := range fields {
		if _, ok := field.Tag.Lookup(mergableTagKey); !ok {
			continue
		}
		sField := sStruct.FieldByName(field.Name)
		otherField := otherStruct.FieldByName(field.Name)

		otherFieldValue := getUnexportedField(otherField)
		if field.Type.Kind() == reflect.Pointer && isNilish(otherFieldValue) {
			continue
		}
		setUnexportedField(sField, otherFieldValue)
	}
}

func mergeSettings(settings ...*Settings) *Settings {
	var result *Settings = &Settings{}
	for _, setting := range settings {
		if setting == nil {
			continue
		}
		result.merge(setting)
	}
	return result
}

// LoadSettings parses args with flagSet and merges the result with the json
// config file and the BLOBSHIFT_* environment. Environment beats flags, flags
// beat the config file. Callers may register their own flags on flagSet
// before calling LoadSettings and read positional arguments from flagSet.Args().
func LoadSettings(flagSet *flag.FlagSet, args []string) (*Settings, error) {
	cmdArgsSettings, configPath, err := loadSettingsFromCmdArgs(flagSet, args)
	if err != nil {
		return nil, err
	}
	envSettings, err := loadSettingsFromEnv()
	if err != nil {
		return nil, err
	}
	if envConfigPath := getStringFromEnv(configPathEnvKey); envConfigPath != nil {
		configPath = envConfigPath
	}
	jsonSettings, err := loadSettingsFromJson(ptrutils.ValueOrDefault(configPath, defaultConfigPath), configPath != nil)
	if err != nil {
		return nil, err
	}
	return mergeSettings(jsonSettings, cmdArgsSettings, envSettings), nil
}
