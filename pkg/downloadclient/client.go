// Package downloadclient talks to the external download client that
// fetches submitted URLs. The monitor drives state transitions off the
// job statuses reported here.
package downloadclient

import (
	"context"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/pkg/errors"
)

// Job statuses normalized across client implementations.
const (
	JobStatusQueued      = "queued"
	JobStatusDownloading = "downloading"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
)

// ErrJobNotFound is returned by Status when the client no longer knows
// the job. The monitor treats this as a lost job and reconciles through
// the file locator.
var ErrJobNotFound = errors.New("job not found in download client")

// Job is the client's view of one download.
type Job struct {
	ID           string
	Name         string
	Status       string
	Progress     float64
	Filepath     string
	ErrorMessage string
}

// Client is implemented by each download-client integration.
type Client interface {
	Name() string
	// Submit hands a URL to the client and returns the client's job id.
	Submit(ctx context.Context, sourceURL, niceName string) (string, error)
	// Status reports a single job, or ErrJobNotFound.
	Status(ctx context.Context, jobID string) (*Job, error)
	// ListJobs returns every job the client currently knows, queued and
	// historical.
	ListJobs(ctx context.Context) ([]Job, error)
	// Delete removes a job, optionally deleting its downloaded files.
	Delete(ctx context.Context, jobID string, removeFiles bool) error
}

type factory func(cfg config.DownloadClientConfig, timeout time.Duration) (Client, error)

var registry = map[string]factory{
	"sabnzbd": newSabnzbd,
}

// New builds a download client from its configuration entry.
func New(cfg config.DownloadClientConfig, timeout time.Duration) (Client, error) {
	build, ok := registry[cfg.Type]
	if !ok {
		return nil, errors.Errorf("unknown download client type %q", cfg.Type)
	}
	return build(cfg, timeout)
}
