package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/aleister1102/siteguardian/internal/models"
)

// truncateString truncates a string to maxLength with ellipsis
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}

// siteEmbed starts the single embed every message carries.
func siteEmbed(prefix string, site models.MonitoredSite, color int, now time.Time) *models.DiscordEmbed {
	return &models.DiscordEmbed{
		Title:     truncateString(prefix+site.DisplayName(), MaxTitleLength),
		URL:       site.URL,
		Color:     color,
		Timestamp: now.Format(time.RFC3339),
		Footer:    &models.DiscordEmbedFooter{Text: FooterText},
	}
}

func addField(embed *models.DiscordEmbed, name, value string, inline bool) {
	embed.Fields = append(embed.Fields, models.DiscordEmbedField{Name: name, Value: value, Inline: inline})
}

// payloadFor wraps embed in a message that pings roleIDs, and only them.
func payloadFor(embed *models.DiscordEmbed, roleIDs []string) models.DiscordMessagePayload {
	payload := models.DiscordMessagePayload{
		Username: DiscordUsername,
		Embeds:   []models.DiscordEmbed{*embed},
	}
	if len(roleIDs) > 0 {
		mentions := make([]string, len(roleIDs))
		for i, id := range roleIDs {
			mentions[i] = "<@&" + id + ">"
		}
		payload.Content = strings.Join(mentions, " ")
		payload.AllowedMentions = &models.AllowedMentions{Roles: roleIDs}
	}
	return payload
}

// FormatChangeMessage builds the payload announcing a content change.
func FormatChangeMessage(site models.MonitoredSite, diff models.DiffResult, roleIDs []string, now time.Time) models.DiscordMessagePayload {
	embed := siteEmbed("Content changed: ", site, ChangeEmbedColor, now)
	embed.Description = fmt.Sprintf("A change was detected on <%s>.", site.URL)
	addField(embed, "Change ratio", fmt.Sprintf("%.1f%%", diff.ChangeRatio*100), true)
	addField(embed, "Segments", fmt.Sprintf("%d", len(diff.Segments)), true)

	if diff.HashOnly {
		addField(embed, "Comparison", "binary content, compared by hash", false)
	} else {
		addField(embed, "Lines", fmt.Sprintf("+%d / -%d / ~%d", diff.LinesAdded, diff.LinesRemoved, diff.LinesModified), true)
	}
	if diff.Note != "" {
		addField(embed, "Note", truncateString(diff.Note, MaxErrorTextLength), false)
	}
	return payloadFor(embed, roleIDs)
}

// FormatFailureMessage builds the payload for a crawl that failed for good.
func FormatFailureMessage(site models.MonitoredSite, crawlErr error, roleIDs []string, now time.Time) models.DiscordMessagePayload {
	errText := "unknown error"
	if crawlErr != nil {
		errText = crawlErr.Error()
	}
	embed := siteEmbed("Crawl failed: ", site, FailureEmbedColor, now)
	embed.Description = fmt.Sprintf("```\n%s\n```", truncateString(errText, MaxErrorTextLength))
	if site.LastStatus != "" {
		addField(embed, "Previous status", site.LastStatus, true)
	}
	return payloadFor(embed, roleIDs)
}
