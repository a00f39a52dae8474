package config

// NotificationConfig defines configuration for notifications
type NotificationConfig struct {
	WebhookURL       string   `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" validate:"omitempty,url"`
	MentionRoleIDs   []string `json:"mention_role_ids,omitempty" yaml:"mention_role_ids,omitempty"`
	NotifyOnFailure  bool     `json:"notify_on_failure" yaml:"notify_on_failure"`
	MinChangeRatio   float64  `json:"min_change_ratio,omitempty" yaml:"min_change_ratio,omitempty" validate:"min=0,max=1"`
	TimeoutSecs      int      `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"min=0"`
	MaxRetries       int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"min=0"`
	LogNotifications bool     `json:"log_notifications" yaml:"log_notifications"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		MentionRoleIDs:   []string{},
		NotifyOnFailure:  true,
		TimeoutSecs:      DefaultNotificationTimeoutSecs,
		MaxRetries:       DefaultNotificationMaxRetries,
		LogNotifications: true,
	}
}
