// Package scan submits and polls asynchronous virus-scan jobs. The
// coordinator is a stateless proxy: job state lives on the remote side
// and polling is caller-driven via repeated Query calls.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/cosclient"
	"github.com/vcpagent/cosvault/pkg/dto"
)

// ErrInvalidSubject is returned when the key/url pair of a submission is
// not exactly one of the two.
var ErrInvalidSubject = errors.New("exactly one of key or url must be provided")

// ErrMissingJobID is returned when Query is called without a job id.
var ErrMissingJobID = errors.New("missing required parameter: job_id")

// Coordinator submits and queries virus-scan jobs.
type Coordinator struct {
	cfg    config.Config
	client cosclient.Client
	log    *slog.Logger
}

// New creates a Coordinator.
// By default the logger is set to discard.
func New(cfg config.Config, client cosclient.Client) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		client: client,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger
func (c *Coordinator) SetLogger(log *slog.Logger) {
	c.log = log
}

// Submit creates a scan job for a stored object key or an external URL.
// Exactly one of key and url must be set; a stored key must have the
// canonical shape. Virus scanning is a platform-safety operation, so the
// folder policy is not consulted. No remote call is made on validation
// failure.
func (c *Coordinator) Submit(ctx context.Context, key, url string) (*dto.ScanJob, error) {
	if (key == "") == (url == "") {
		return nil, ErrInvalidSubject
	}
	if key != "" {
		parts := strings.Split(key, "/")
		if len(parts) < 3 || parts[0] != c.cfg.ParentDir {
			return nil, fmt.Errorf("invalid COS key: %q", key)
		}
	}

	job, err := c.client.ScanSubmit(ctx, key, url)
	if err != nil {
		return nil, err
	}
	c.log.Info("virus detection submitted",
		slog.String("key", key),
		slog.String("url", url),
		slog.String("jobID", job.JobID))
	return job, nil
}

// Query returns the remote job's current state verbatim. Repeated calls
// simply re-ask the remote service.
func (c *Coordinator) Query(ctx context.Context, jobID string) (*dto.ScanJob, error) {
	if jobID == "" {
		return nil, ErrMissingJobID
	}
	job, err := c.client.ScanQuery(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.log.Info("virus detection queried",
		slog.String("jobID", jobID),
		slog.String("state", job.State))
	return job, nil
}
