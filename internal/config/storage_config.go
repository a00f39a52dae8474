package config

// StorageConfig defines configuration for metadata storage and history exports
type StorageConfig struct {
	SQLiteDBPath     string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required"`
	ExportBasePath   string `json:"export_base_path,omitempty" yaml:"export_base_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,codec"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SQLiteDBPath:     DefaultStorageSQLiteDBPath,
		ExportBasePath:   DefaultStorageExportBasePath,
		CompressionCodec: DefaultStorageCompressionCodec,
	}
}
