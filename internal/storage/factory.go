package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/hrsync/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized storage client, nil when archiving is disabled.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg config.StorageConfig) (ObjectStorage, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	storeType := StorageType(strings.ToLower(cfg.Type))
	// Auto-detect storage type if not specified
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	switch storeType {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.Bucket)
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
		return NewS3Storage(&S3Config{
			Type:      storeType,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeLocal
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// ArchiveKey is the object key of a file version: <prefix>/<file type>/<versioned name>.
func ArchiveKey(prefix, fileType, versionedName string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, fileType, versionedName)
	return strings.Join(parts, "/")
}

// ContentType guesses the MIME type of an HR export from its extension.
func ContentType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(lower, ".xls"):
		return "application/vnd.ms-excel"
	case strings.HasSuffix(lower, ".csv"):
		return "text/csv"
	default:
		return "text/plain"
	}
}
