package config

// BackupConfig defines configuration for the content-addressed backup store
type BackupConfig struct {
	Root             string `json:"root,omitempty" yaml:"root,omitempty" validate:"required"`
	KeepUncompressed int    `json:"keep_uncompressed,omitempty" yaml:"keep_uncompressed,omitempty" validate:"min=0"`
	EnforceRetention bool   `json:"enforce_retention" yaml:"enforce_retention"`
	VerifyHashOnRead bool   `json:"verify_hash_on_read" yaml:"verify_hash_on_read"`
}

// NewDefaultBackupConfig creates default backup configuration
func NewDefaultBackupConfig() BackupConfig {
	return BackupConfig{
		Root:             DefaultBackupRoot,
		KeepUncompressed: DefaultBackupKeepUncompressed,
		EnforceRetention: DefaultBackupEnforceRetention,
		VerifyHashOnRead: DefaultBackupVerifyHashOnRead,
	}
}
