package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streetfix/streetfix/internal/adapters/identity"
)

// HTTPClient wraps http.Client with timeout and synthetic identity headers
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// PostAs performs a POST request with JSON body as the given user
func (c *HTTPClient) PostAs(url, userID string, body interface{}) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		buf = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest("POST", url, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderUserID, userID)
	req.Header.Set(identity.HeaderEmail, userID[:8]+"@example.com")
	req.Header.Set(identity.HeaderVerified, "true")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitReports submits reports concurrently and returns stored ids
func submitReports(ctx context.Context, config *Config, reports []Report, stats *Stats) ([]string, error) {
	log.Printf("submitting %d reports with %d workers...", len(reports), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/reports"
	authors := voterIDs(config.Workers)

	var (
		successful int64
		failed     int64
		mu         sync.Mutex
		ids        []string
	)

	jobs := make(chan Report)
	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		author := authors[w]
		go func() {
			defer wg.Done()
			for rep := range jobs {
				resp, err := client.PostAs(url, author, rep)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				body, err := readResponseBody(resp)
				if err != nil || resp.StatusCode != http.StatusCreated {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("submit failed: status=%d body=%s", resp.StatusCode, body)
					}
					continue
				}
				var ack SubmitResponse
				if err := json.Unmarshal(body, &ack); err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&successful, 1)
				mu.Lock()
				ids = append(ids, ack.Report.ID)
				mu.Unlock()
			}
		}()
	}

	for _, rep := range reports {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ids, ctx.Err()
		case jobs <- rep:
		}
	}
	close(jobs)
	wg.Wait()

	stats.ReportsSubmitted = int(successful)
	stats.ReportsFailed = int(failed)
	return ids, nil
}

// toggleVotes has each synthetic voter upvote a spread of reports
func toggleVotes(ctx context.Context, config *Config, reportIDs []string, stats *Stats) error {
	if len(reportIDs) == 0 {
		return nil
	}
	log.Printf("toggling votes from %d voters...", config.NumVoters)

	client := newHTTPClient(config.Timeout)
	voters := voterIDs(config.NumVoters)

	var (
		toggled int64
		failed  int64
	)

	var wg sync.WaitGroup
	sem := make(chan struct{}, config.Workers)
	for vi, voter := range voters {
		// Voter i upvotes reports 0..i%len, skewing counts so the
		// sorted feed has a meaningful order.
		limit := vi%len(reportIDs) + 1
		for _, id := range reportIDs[:limit] {
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(voter, id string) {
				defer wg.Done()
				defer func() { <-sem }()
				resp, err := client.PostAs(config.BaseURL+"/reports/"+id+"/upvote", voter, nil)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					return
				}
				_, _ = readResponseBody(resp)
				if resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failed, 1)
					return
				}
				atomic.AddInt64(&toggled, 1)
			}(voter, id)
		}
	}
	wg.Wait()

	stats.VotesToggled = int(toggled)
	stats.VotesFailed = int(failed)
	return nil
}

// fetchList pulls the sorted report feed and logs the top entries
func fetchList(ctx context.Context, config *Config, sort string, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(config.BaseURL + "/reports?sort=" + sort)
	if err != nil {
		return fmt.Errorf("fetch list: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch list: status %d", resp.StatusCode)
	}

	var records []struct {
		ID          string `json:"id"`
		Category    string `json:"category"`
		UpvoteCount int64  `json:"upvote_count"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}

	stats.ListsFetched++
	log.Printf("feed sort=%s returned %d reports", sort, len(records))
	if config.Verbose {
		for i, r := range records {
			if i >= 10 {
				break
			}
			log.Printf("  %2d. votes=%-4d %s (%s)", i+1, r.UpvoteCount, r.ID, r.Category)
		}
	}
	return nil
}
