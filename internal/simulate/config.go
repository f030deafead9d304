package simulate

import "time"

// Config holds configuration for a simulation run
type Config struct {
	BaseURL    string        // Base URL of the service
	NumReports int           // Number of reports to generate
	NumVoters  int           // Number of synthetic voter accounts
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Report is the submission payload sent to the service
type Report struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Images      []string `json:"images"`
}

// SubmitResponse acknowledges a stored report
type SubmitResponse struct {
	Report struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		UpvoteCount int64  `json:"upvote_count"`
	} `json:"report"`
}

// VoteResponse mirrors the post-toggle vote state
type VoteResponse struct {
	ReportID string `json:"report_id"`
	Upvoted  bool   `json:"upvoted"`
	Count    int64  `json:"count"`
}

// Stats holds simulation statistics
type Stats struct {
	ReportsGenerated int
	ReportsSubmitted int
	ReportsFailed    int
	VotesToggled     int
	VotesFailed      int
	ListsFetched     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
