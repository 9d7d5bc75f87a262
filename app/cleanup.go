package app

import (
	"context"
	"fmt"

	"github.com/scholarscout/scraper/db"
	"github.com/scholarscout/scraper/urlfilter"
)

// BlockedRecord is a stored record the current URL rules would reject
type BlockedRecord struct {
	db.RecordURL
	Reason string `json:"reason"`
}

// CleanupReport lists the blocked records found by Cleanup
type CleanupReport struct {
	DryRun  bool            `json:"dry_run"`
	Checked int             `json:"checked"`
	Blocked []BlockedRecord `json:"blocked"`
	Deleted int64           `json:"deleted"`
}

// FilterStats re-evaluates every stored source_url against the URL rules
func (a *App) FilterStats(ctx context.Context) (urlfilter.Stats, error) {
	records, err := a.DB.ListAllURLs(ctx)
	if err != nil {
		return urlfilter.Stats{}, err
	}
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.SourceURL
	}
	return a.Gatekeeper.Evaluate(urls), nil
}

// Cleanup finds stored records whose source_url is now blocked and deletes
// them unless dryRun is set
func (a *App) Cleanup(ctx context.Context, dryRun bool) (CleanupReport, error) {
	records, err := a.DB.ListAllURLs(ctx)
	if err != nil {
		return CleanupReport{}, err
	}

	report := CleanupReport{DryRun: dryRun, Checked: len(records), Blocked: []BlockedRecord{}}
	var ids []int64
	for _, r := range records {
		v := a.Gatekeeper.Filter(r.SourceURL)
		if v.Valid {
			continue
		}
		report.Blocked = append(report.Blocked, BlockedRecord{RecordURL: r, Reason: v.String()})
		ids = append(ids, r.ID)
	}

	if dryRun || len(ids) == 0 {
		return report, nil
	}

	deleted, err := a.DB.DeleteByIDs(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("failed to delete blocked records: %w", err)
	}
	report.Deleted = deleted
	a.logger.InfoContext(ctx, "blocked records removed", "deleted", deleted, "checked", report.Checked)
	return report, nil
}
