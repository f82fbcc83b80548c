package downloadclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type sabnzbd struct {
	name   string
	base   string
	apiKey string
	client *http.Client
}

func newSabnzbd(cfg config.DownloadClientConfig, timeout time.Duration) (Client, error) {
	if cfg.URL == "" {
		return nil, errors.Errorf("download client %q has no url", cfg.Name)
	}
	return &sabnzbd{
		name:   cfg.Name,
		base:   strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (s *sabnzbd) Name() string {
	return s.name
}

func (s *sabnzbd) call(ctx context.Context, params url.Values, out any) error {
	params.Set("output", "json")
	if s.apiKey != "" {
		params.Set("apikey", s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/api?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create download client request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "download client %q request failed", s.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download client %q request failed: HTTP %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read download client response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "download client %q returned malformed response", s.name)
	}
	return nil
}

type addURLResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

func (s *sabnzbd) Submit(ctx context.Context, sourceURL, niceName string) (string, error) {
	params := url.Values{}
	params.Set("mode", "addurl")
	params.Set("name", sourceURL)
	if niceName != "" {
		params.Set("nzbname", niceName)
	}

	resp := &addURLResponse{}
	if err := s.call(ctx, params, resp); err != nil {
		return "", err
	}
	if !resp.Status || len(resp.NzoIDs) == 0 {
		if resp.Error != "" {
			return "", errors.Errorf("download client %q rejected submission: %s", s.name, resp.Error)
		}
		return "", errors.Errorf("download client %q rejected submission", s.name)
	}
	return resp.NzoIDs[0], nil
}

type queueResponse struct {
	Queue struct {
		Slots []struct {
			NzoID      string `json:"nzo_id"`
			Filename   string `json:"filename"`
			Status     string `json:"status"`
			Percentage string `json:"percentage"`
		} `json:"slots"`
	} `json:"queue"`
}

type historyResponse struct {
	History struct {
		Slots []struct {
			NzoID       string `json:"nzo_id"`
			Name        string `json:"name"`
			Status      string `json:"status"`
			Storage     string `json:"storage"`
			FailMessage string `json:"fail_message"`
		} `json:"slots"`
	} `json:"history"`
}

func (s *sabnzbd) ListJobs(ctx context.Context) ([]Job, error) {
	queueParams := url.Values{}
	queueParams.Set("mode", "queue")
	queue := &queueResponse{}
	if err := s.call(ctx, queueParams, queue); err != nil {
		return nil, err
	}

	historyParams := url.Values{}
	historyParams.Set("mode", "history")
	history := &historyResponse{}
	if err := s.call(ctx, historyParams, history); err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(queue.Queue.Slots)+len(history.History.Slots))
	for _, slot := range queue.Queue.Slots {
		job := Job{
			ID:     slot.NzoID,
			Name:   slot.Filename,
			Status: JobStatusQueued,
		}
		if strings.EqualFold(slot.Status, "Downloading") {
			job.Status = JobStatusDownloading
		}
		if pct, err := strconv.ParseFloat(slot.Percentage, 64); err == nil {
			job.Progress = pct
		}
		jobs = append(jobs, job)
	}
	for _, slot := range history.History.Slots {
		job := Job{
			ID:       slot.NzoID,
			Name:     slot.Name,
			Filepath: slot.Storage,
		}
		if strings.EqualFold(slot.Status, "Completed") {
			job.Status = JobStatusCompleted
			job.Progress = 100
		} else {
			job.Status = JobStatusFailed
			job.ErrorMessage = slot.FailMessage
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (s *sabnzbd) Status(ctx context.Context, jobID string) (*Job, error) {
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == jobID {
			return &jobs[i], nil
		}
	}
	return nil, errors.WithStack(ErrJobNotFound)
}

func (s *sabnzbd) Delete(ctx context.Context, jobID string, removeFiles bool) error {
	// The job can be in the queue or the history; delete from both.
	queueParams := url.Values{}
	queueParams.Set("mode", "queue")
	queueParams.Set("name", "delete")
	queueParams.Set("value", jobID)
	if removeFiles {
		queueParams.Set("del_files", "1")
	}
	resp := map[string]any{}
	if err := s.call(ctx, queueParams, &resp); err != nil {
		return err
	}

	historyParams := url.Values{}
	historyParams.Set("mode", "history")
	historyParams.Set("name", "delete")
	historyParams.Set("value", jobID)
	if removeFiles {
		historyParams.Set("del_files", "1")
	}
	resp = map[string]any{}
	return s.call(ctx, historyParams, &resp)
}
