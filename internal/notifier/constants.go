package notifier

// Discord formatting constants
const (
	DiscordUsername   = "SiteGuardian"
	ChangeEmbedColor  = 0xF0AD4E // warning orange
	FailureEmbedColor = 0xD9534F // danger red
	FooterText        = "SiteGuardian change monitor"
)

// Notification kinds, also used as metric labels.
const (
	KindChange  = "change"
	KindFailure = "failure"
)

const (
	MaxErrorTextLength = 800
	MaxTitleLength     = 240
)
