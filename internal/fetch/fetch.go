// Package fetch downloads remote batch artifacts (assembly and index
// archives) over HTTP. Network failures are the transient class of the error
// taxonomy: the client retries, and a failed unit resumes from cache on the
// next run.
package fetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"resty.dev/v3"

	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// Downloader wraps a shared retrying HTTP client. One Downloader serves all
// download units; per-unit concurrency is bounded by the download resource
// class, not here.
type Downloader struct {
	client *resty.Client
}

// NewDownloader returns a Downloader retrying transient failures up to
// retries times.
func NewDownloader(retries int, timeout time.Duration) *Downloader {
	client := resty.New().
		SetRetryCount(retries).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetTimeout(timeout)
	return &Downloader{client: client}
}

// Close releases the underlying client.
func (d *Downloader) Close() {
	d.client.Close()
}

// Fetch downloads url into the file at dst. Non-2xx responses are errors and
// leave no partial file behind beyond what the caller aborts.
func (d *Downloader) Fetch(ctx context.Context, url, dst string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting download.", "url", url)

	res, err := d.client.R().
		SetContext(ctx).
		SetSaveResponse(true).
		SetOutputFileName(dst).
		Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	if res.IsError() {
		os.Remove(dst)
		return fmt.Errorf("downloading %s: unexpected status %s", url, res.Status())
	}

	if info, statErr := os.Stat(dst); statErr == nil {
		logger.Info("Download complete.", "url", url, "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
