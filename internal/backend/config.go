package backend

import (
	"fmt"

	"famledger/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		EnforceOwnership:   appConfig.EnforceOwnership,
		SnapshotFamilyName: appConfig.SnapshotFamilyName,

		AttachmentsDriver:      appConfig.AttachmentsDriver,
		AttachmentsS3Bucket:    appConfig.AttachmentsS3Bucket,
		AttachmentsS3Region:    appConfig.AttachmentsS3Region,
		AttachmentsS3Endpoint:  appConfig.AttachmentsS3Endpoint,
		AttachmentsS3PathStyle: appConfig.AttachmentsS3PathStyle,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	}

	switch c.AttachmentsDriver {
	case "", "memory":
	case "s3":
		if c.AttachmentsS3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 attachments")
		}
	default:
		return fmt.Errorf("invalid attachments driver: %s", c.AttachmentsDriver)
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}
