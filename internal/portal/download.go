package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jerseysync/internal/files"
	"jerseysync/internal/metrics"
)

// DownloadRequest wraps a UI action expected to produce a file download.
type DownloadRequest struct {
	// Trigger performs the click (or equivalent) that starts the download.
	Trigger func(ctx context.Context) error
	// PathTemplate names the saved file; {timestamp} is substituted.
	PathTemplate string
	// Ext is appended when the template lacks it.
	Ext string
	// Timeout bounds the whole capture. Zero uses the session default.
	Timeout time.Duration
}

// Download captures the file produced by the request's trigger. The
// download expectation is registered before the trigger runs; reversing
// that order races the browser's download event against the listener and
// loses downloads. An empty file is returned as success with a warning so
// callers can tell "empty report" from "mechanism failed"; a missing
// download within the timeout is a DownloadTimeoutError, never a hang.
func (s *Session) Download(ctx context.Context, req DownloadRequest) (string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.dlCfg.Timeout
	}

	dir, err := files.EnsureDir(s.dlCfg.Directory)
	if err != nil {
		return "", err
	}
	name := files.ResolvePattern(req.PathTemplate, req.Ext, time.Now())
	target := files.UniquePath(filepath.Join(dir, name))

	// Expectation first, trigger second.
	completed, stop, err := s.driver.ExpectDownload(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("register download expectation: %w", err)
	}
	defer stop()

	var triggerErr error
	if req.Trigger != nil {
		if triggerErr = req.Trigger(ctx); triggerErr != nil {
			// The click handler may have errored after the request was
			// already dispatched; keep waiting out the bounded timeout.
			s.logger.Warn().Err(triggerErr).Msg("download trigger failed, waiting for download event anyway")
		}
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case tmpPath := <-completed:
		return s.persistDownload(tmpPath, target)
	case <-tctx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		metrics.IncDownload("timeout")
		return "", &DownloadTimeoutError{Timeout: timeout, Trigger: triggerErr}
	}
}

func (s *Session) persistDownload(tmpPath, target string) (string, error) {
	if tmpPath != target {
		if err := os.Rename(tmpPath, target); err != nil {
			metrics.IncDownload("error")
			return "", fmt.Errorf("persist download to %s: %w", target, err)
		}
	}

	st, err := os.Stat(target)
	if err != nil {
		metrics.IncDownload("error")
		return "", fmt.Errorf("stat downloaded file: %w", err)
	}
	if st.Size() == 0 {
		// An empty report is a valid result; the caller decides what an
		// empty file means.
		s.logger.Warn().Str("path", target).Msg("download completed but file is empty")
		metrics.IncDownload("empty")
		return target, nil
	}

	s.logger.Info().Str("path", target).Str("size", files.FormatSize(st.Size())).Msg("download saved")
	metrics.IncDownload("ok")
	return target, nil
}
