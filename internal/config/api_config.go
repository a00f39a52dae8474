package config

// APIConfig defines configuration for the operator HTTP API
type APIConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" validate:"required_if=Enabled true"`
}

// NewDefaultAPIConfig creates default API configuration
func NewDefaultAPIConfig() APIConfig {
	return APIConfig{
		Enabled:    true,
		ListenAddr: DefaultAPIListenAddr,
	}
}
