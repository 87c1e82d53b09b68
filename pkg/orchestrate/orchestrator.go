package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/detect"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/fetch"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/locate"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/process"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// Mode is how a target was interpreted
type Mode string

const (
	ModeManual Mode = "manual" // Single export file
	ModeAuto   Mode = "auto"   // Archive directory walked by the locator
)

// RunResult contains the result of one extraction run
type RunResult struct {
	RunID      string              `json:"run_id"`
	Target     string              `json:"target"`
	Mode       Mode                `json:"mode"`
	Documents  int                 `json:"documents"`
	DocErrors  int                 `json:"document_errors"`
	Collected  int                 `json:"urls_collected"`
	Invalid    int                 `json:"invalid_urls"`
	Duplicates int                 `json:"duplicates"`
	Valid      int                 `json:"valid_images"`
	Summary    models.BatchSummary `json:"summary"`
	Duration   time.Duration       `json:"duration"`
}

// CollectResult is the deduplicated batch built from a set of documents
type CollectResult struct {
	Batch      []models.ImageDescriptor
	Collected  int
	Invalid    int
	Duplicates int
	DocErrors  int
}

// Options tunes an Orchestrator beyond the application config
type Options struct {
	OnOutcome func(models.DownloadOutcome) // Per-image progress callback, may be nil
}

// Orchestrator wires the pipeline stages together for one configuration
type Orchestrator struct {
	appCfg     *config.AppConfig
	classifier *detect.Classifier
	locator    *locate.Locator
	extractor  *process.LinkExtractor
	builder    *process.DescriptorBuilder
	opts       Options
	log        *logrus.Entry
}

// NewOrchestrator creates an orchestrator. appCfg must already be validated.
func NewOrchestrator(appCfg *config.AppConfig, opts Options, log *logrus.Entry) (*Orchestrator, error) {
	classifier, err := detect.NewClassifier(appCfg.Classifier, log.WithField("component", "classifier"))
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		appCfg:     appCfg,
		classifier: classifier,
		locator:    locate.NewLocator(appCfg.Sources, classifier, log.WithField("component", "locator")),
		extractor:  process.NewLinkExtractor(appCfg.ContainerShape, log.WithField("component", "extractor")),
		builder:    process.NewDescriptorBuilder(appCfg.PhotoDirName),
		opts:       opts,
		log:        log,
	}, nil
}

// Classifier returns the classifier built from the configuration
func (o *Orchestrator) Classifier() *detect.Classifier {
	return o.classifier
}

// ResolveDocuments turns a target path into the documents to process.
// An existing .htm/.html file is classified with a content check and must
// resolve to a known class; a directory is walked by the locator.
func (o *Orchestrator) ResolveDocuments(target string) (Mode, []models.Document, error) {
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: '%s'", utils.ErrTargetNotFound, target)
		}
		return "", nil, fmt.Errorf("%w: stat '%s': %w", utils.ErrFilesystem, target, err)
	}

	switch {
	case info.Mode().IsRegular() && utils.IsHTMLFileName(target):
		class, err := o.classifier.Classify(target, true)
		if err != nil {
			return ModeManual, nil, err
		}
		if class == models.ClassUnknown {
			return ModeManual, nil, fmt.Errorf("%w: '%s'", utils.ErrIncorrectFile, target)
		}
		return ModeManual, []models.Document{{Path: target, Class: class}}, nil
	case info.IsDir():
		if !o.appCfg.Sources.AnyEnabled() {
			return ModeAuto, nil, utils.ErrNoSources
		}
		docs, err := o.locator.Locate(target)
		return ModeAuto, docs, err
	}
	return "", nil, fmt.Errorf("%w: '%s'", utils.ErrUnknownTarget, target)
}

// CollectBatch extracts links from docs in parallel and feeds them through
// the gate in document order, so the batch does not depend on scheduling.
// A document that fails to extract is logged and contributes nothing.
func (o *Orchestrator) CollectBatch(ctx context.Context, docs []models.Document) (CollectResult, error) {
	return o.collectBatch(ctx, docs, o.log)
}

func (o *Orchestrator) collectBatch(ctx context.Context, docs []models.Document, log *logrus.Entry) (CollectResult, error) {
	perDoc := make([][]models.ExtractedLink, len(docs))
	docErrs := make([]error, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.appCfg.ExtractWorkers)
	for i, d := range docs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			links, err := o.extractor.Extract(d)
			if err != nil {
				docErrs[i] = err
				return nil
			}
			perDoc[i] = links
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CollectResult{}, err
	}

	var res CollectResult
	for i, d := range docs {
		if docErrs[i] != nil {
			res.DocErrors++
			log.WithField("category", utils.CategorizeError(docErrs[i])).Errorf("%v", docErrs[i])
			continue
		}
		log.Infof("%d links parsed from %s", len(perDoc[i]), d.Path)
		res.Collected += len(perDoc[i])
	}
	log.Infof("Urls collected: %d", res.Collected)

	gate := process.NewGate(o.appCfg.ValidURLTrails)
	for _, links := range perDoc {
		for _, link := range links {
			switch gate.Check(o.builder.Build(link)) {
			case process.VerdictInvalid:
				res.Invalid++
				log.Infof("Invalid image url: %s", link.URL)
			case process.VerdictDuplicate:
				res.Duplicates++
			}
		}
	}
	res.Batch = gate.Batch()
	log.Infof("Valid images after filtering: %d", len(res.Batch))
	return res, nil
}

// Download runs the bounded downloader over batch with a client scoped to this call
func (o *Orchestrator) Download(ctx context.Context, batch []models.ImageDescriptor) models.BatchSummary {
	return o.download(ctx, batch, o.log)
}

func (o *Orchestrator) download(ctx context.Context, batch []models.ImageDescriptor, log *logrus.Entry) models.BatchSummary {
	client := fetch.NewClient(o.appCfg.HTTPClientSettings, log)
	defer client.CloseIdleConnections()

	fetcher := fetch.NewFetcher(client, o.appCfg.RequestHeaders, o.appCfg.MaxImageSizeBytes, log.WithField("component", "fetcher"))
	opts := process.DownloaderOptions{
		Concurrency:             o.appCfg.Concurrency,
		SemaphoreAcquireTimeout: o.appCfg.SemaphoreAcquireTimeout,
		DelayPerHost:            o.appCfg.DelayPerHost,
		HostPool:                fetch.NewHostSemaphorePool(o.appCfg.MaxRequestsPerHost, log),
		OnOutcome:               o.opts.OnOutcome,
	}
	if o.appCfg.DelayPerHost > 0 {
		opts.RateLimiter = fetch.NewRateLimiter(o.appCfg.DelayPerHost, log)
	}

	downloader := process.NewImageDownloader(fetcher, opts, log.WithField("component", "downloader"))
	return downloader.Run(ctx, batch)
}

// Run resolves target, collects the batch and downloads it.
// Only target resolution and cancellation during collection are fatal.
func (o *Orchestrator) Run(ctx context.Context, target string) (*RunResult, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	runLog := o.log.WithField("run_id", runID)

	mode, docs, err := o.ResolveDocuments(target)
	if err != nil {
		return nil, err
	}
	runLog.WithField("mode", mode).Infof("Total file count: %d", len(docs))

	collected, err := o.collectBatch(ctx, docs, runLog)
	if err != nil {
		return nil, err
	}

	runLog.Info("Start downloading files")
	summary := o.download(ctx, collected.Batch, runLog)

	result := &RunResult{
		RunID:      runID,
		Target:     target,
		Mode:       mode,
		Documents:  len(docs),
		DocErrors:  collected.DocErrors,
		Collected:  collected.Collected,
		Invalid:    collected.Invalid,
		Duplicates: collected.Duplicates,
		Valid:      len(collected.Batch),
		Summary:    summary,
		Duration:   time.Since(startTime),
	}
	logSummary(runLog, result)
	return result, nil
}

// logSummary logs the counts and the failure breakdown of a run
func logSummary(log *logrus.Entry, r *RunResult) {
	log.Info("============================================")
	log.Infof("Run completed in %v", r.Duration)
	log.Infof("Skipped file count: %d", r.Summary.Skipped)
	log.Infof("Downloaded file count: %d", r.Summary.Downloaded)
	log.Infof("Error file count: %d", r.Summary.Failed)
	if len(r.Summary.ByCategory) > 0 {
		log.Info("Failures by category:")
		for _, c := range SortedCategories(r.Summary.ByCategory) {
			log.Infof("  %s: %d", c, r.Summary.ByCategory[c])
		}
	}
	log.Info("============================================")
}

// SortedCategories returns the keys of byCategory, most frequent first
func SortedCategories(byCategory map[string]int) []string {
	keys := make([]string, 0, len(byCategory))
	for k := range byCategory {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if byCategory[keys[i]] != byCategory[keys[j]] {
			return byCategory[keys[i]] > byCategory[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
