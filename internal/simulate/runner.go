package simulate

import (
	"context"
	"log"
	"time"
)

// Run executes a full simulation pass: generate, submit, vote, fetch.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	reports := generateReports(ctx, config, stats)

	ids, err := submitReports(ctx, config, reports, stats)
	if err != nil {
		return err
	}

	if err := toggleVotes(ctx, config, ids, stats); err != nil {
		return err
	}

	for _, sort := range []string{"votes-high", "votes-low"} {
		if err := fetchList(ctx, config, sort, stats); err != nil {
			return err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	printSummary(stats)
	return nil
}

func printSummary(stats *Stats) {
	log.Printf("simulation complete in %s", stats.Duration.Round(time.Millisecond))
	log.Printf("  reports: generated=%d submitted=%d failed=%d",
		stats.ReportsGenerated, stats.ReportsSubmitted, stats.ReportsFailed)
	log.Printf("  votes:   toggled=%d failed=%d", stats.VotesToggled, stats.VotesFailed)
	log.Printf("  lists:   fetched=%d", stats.ListsFetched)
}
