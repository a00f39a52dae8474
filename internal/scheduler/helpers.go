package scheduler

import (
	"sort"

	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"
)

// DefaultHistoryLimit caps history queries that pass no limit.
const DefaultHistoryLimit = 50

// outcomeStatus maps a crawl outcome to the site status and metrics result.
func outcomeStatus(outcome *models.CrawlOutcome) (string, string) {
	switch {
	case outcome.Baseline:
		return models.SiteStatusBaseline, metrics.ResultBaseline
	case outcome.Changed:
		return models.SiteStatusChanged, metrics.ResultChanged
	}
	return models.SiteStatusUnchanged, metrics.ResultUnchanged
}

// pendingOrder sorts jobs oldest first so long waiting sites go first.
func pendingOrder(jobs []*models.CrawlJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].ScheduledAt.Equal(jobs[j].ScheduledAt) {
			return jobs[i].ScheduledAt.Before(jobs[j].ScheduledAt)
		}
		return jobs[i].SiteID < jobs[j].SiteID
	})
}
