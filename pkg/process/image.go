package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/fetch"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// ImageFetcher retrieves the whole body of an image URL
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// DownloaderOptions configures an ImageDownloader
type DownloaderOptions struct {
	Concurrency             int                          // Global permit count
	SemaphoreAcquireTimeout time.Duration                // 0 = wait for a permit indefinitely
	DelayPerHost            time.Duration                // Used with RateLimiter
	HostPool                *fetch.HostSemaphorePool     // nil = no per-host cap
	RateLimiter             *fetch.RateLimiter           // nil = no politeness delay
	OnOutcome               func(models.DownloadOutcome) // Called from fetch goroutines; must be safe for concurrent use
}

// ImageDownloader fetches a batch of descriptors under a fixed concurrency ceiling
type ImageDownloader struct {
	fetcher      ImageFetcher
	globalSem    *semaphore.Weighted
	semTimeout   time.Duration
	delayPerHost time.Duration
	hostPool     *fetch.HostSemaphorePool
	rateLimiter  *fetch.RateLimiter
	onOutcome    func(models.DownloadOutcome)
	log          *logrus.Entry
}

// NewImageDownloader creates a downloader. Concurrency <= 0 means one permit.
func NewImageDownloader(fetcher ImageFetcher, opts DownloaderOptions, log *logrus.Entry) *ImageDownloader {
	permits := int64(opts.Concurrency)
	if permits <= 0 {
		permits = 1
	}
	return &ImageDownloader{
		fetcher:      fetcher,
		globalSem:    semaphore.NewWeighted(permits),
		semTimeout:   opts.SemaphoreAcquireTimeout,
		delayPerHost: opts.DelayPerHost,
		hostPool:     opts.HostPool,
		rateLimiter:  opts.RateLimiter,
		onOutcome:    opts.OnOutcome,
		log:          log,
	}
}

// Run downloads every descriptor in batch and returns the summary once all have finished.
// Each descriptor gets its own goroutine and result slot; a failure never aborts the rest.
func (d *ImageDownloader) Run(ctx context.Context, batch []models.ImageDescriptor) models.BatchSummary {
	start := time.Now()
	outcomes := make([]models.DownloadOutcome, len(batch))

	var wg sync.WaitGroup
	for i, desc := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.downloadOne(ctx, desc)
			if d.onOutcome != nil {
				d.onOutcome(outcomes[i])
			}
		}()
	}
	wg.Wait()

	summary := models.Summarize(outcomes)
	summary.Duration = time.Since(start)
	return summary
}

// downloadOne takes one descriptor to a terminal outcome
func (d *ImageDownloader) downloadOne(ctx context.Context, desc models.ImageDescriptor) (outcome models.DownloadOutcome) {
	outcome = models.DownloadOutcome{URL: desc.URL, Path: desc.Path}
	imgLog := d.log.WithFields(logrus.Fields{"img_url": desc.URL, "path": desc.Path})

	fail := func(err error) models.DownloadOutcome {
		d.log.Errorf("%v - %s", err, desc.URL)
		outcome.Kind = models.OutcomeFailed
		outcome.Err = err
		outcome.Reason = err.Error()
		outcome.Category = utils.CategorizeError(err)
		return outcome
	}

	defer func() {
		if r := recover(); r != nil {
			imgLog.WithFields(logrus.Fields{"panic_info": r, "stack_trace": string(debug.Stack())}).Error("PANIC Recovered in downloadOne")
			outcome = fail(fmt.Errorf("panic downloading '%s': %v", desc.URL, r))
		}
	}()

	if _, err := os.Stat(desc.Path); err == nil {
		imgLog.Debug("Destination exists, skipping")
		outcome.Kind = models.OutcomeSkipped
		return outcome
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(fmt.Errorf("%w: checking '%s': %w", utils.ErrFilesystem, desc.Path, err))
	}

	err := d.withPermits(ctx, fetch.HostOf(desc.URL), func() error {
		data, err := d.fetcher.Fetch(ctx, desc.URL)
		if err != nil {
			return err
		}
		return writeWholeFile(desc.Path, data)
	})
	if err != nil {
		return fail(err)
	}

	imgLog.Debug("Downloaded")
	outcome.Kind = models.OutcomeDownloaded
	return outcome
}

// withPermits runs fn while holding the global permit, the optional host
// permit and the host's rate-limit slot. Permits are released on every path.
func (d *ImageDownloader) withPermits(ctx context.Context, host string, fn func() error) error {
	acquireCtx := ctx
	if d.semTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, d.semTimeout)
		defer cancel()
	}

	if err := d.globalSem.Acquire(acquireCtx, 1); err != nil {
		return semaphoreError(ctx, "global", err)
	}
	defer d.globalSem.Release(1)

	if err := d.hostPool.Acquire(acquireCtx, host); err != nil {
		return semaphoreError(ctx, "host "+host, err)
	}
	defer d.hostPool.Release(host)

	if d.rateLimiter != nil {
		if err := d.rateLimiter.ApplyDelay(ctx, host, d.delayPerHost); err != nil {
			return err
		}
	}
	return fn()
}

// semaphoreError distinguishes an acquire timeout from cancellation of the run
func semaphoreError(ctx context.Context, which string, err error) error {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: acquiring %s semaphore: %w", utils.ErrSemaphoreTimeout, which, err)
	}
	return err
}

// writeWholeFile writes data next to path and renames it into place,
// so a failed write never leaves a truncated file at path.
func writeWholeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".part-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: renaming into '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
