package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Concurrency
	if c.Concurrency <= 0 {
		if c.Concurrency < 0 {
			warnings = append(warnings, fmt.Sprintf("concurrency should be > 0, defaulting to %d", DefaultConcurrency))
		}
		c.Concurrency = DefaultConcurrency
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost < 0 {
		warnings = append(warnings, "max_requests_per_host cannot be negative, disabling per-host limit")
		c.MaxRequestsPerHost = 0
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling delay")
		c.DelayPerHost = 0
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout < 0 {
		warnings = append(warnings, "semaphore_acquire_timeout cannot be negative, waiting indefinitely")
		c.SemaphoreAcquireTimeout = 0
	}

	// MaxImageSizeBytes
	if c.MaxImageSizeBytes < 0 {
		warnings = append(warnings, "max_image_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxImageSizeBytes = 0
	}

	// ExtractWorkers
	if c.ExtractWorkers <= 0 {
		c.ExtractWorkers = defaultExtractWorkers()
	}

	// PhotoDirName
	if c.PhotoDirName == "" {
		c.PhotoDirName = DefaultPhotoDirName
	} else if strings.ContainsAny(c.PhotoDirName, `/\`) || c.PhotoDirName == "." || c.PhotoDirName == ".." {
		return warnings, fmt.Errorf("%w: photo_dir_name '%s' must be a single directory name", utils.ErrConfigValidation, c.PhotoDirName)
	}

	// ContainerShape
	switch c.ContainerShape {
	case "":
		c.ContainerShape = ShapeAuto
	case ShapeAuto, ShapeDiv, ShapeTableRow:
	default:
		return warnings, fmt.Errorf("%w: container_shape '%s' must be one of auto, div, table_row", utils.ErrConfigValidation, c.ContainerShape)
	}

	// ValidURLTrails
	if len(c.ValidURLTrails) == 0 {
		c.ValidURLTrails = append([]string(nil), DefaultValidURLTrails...)
	} else {
		trails := c.ValidURLTrails[:0]
		for _, t := range c.ValidURLTrails {
			if t == "" {
				warnings = append(warnings, "valid_url_trails contains an empty entry, ignoring it")
				continue
			}
			trails = append(trails, t)
		}
		if len(trails) == 0 {
			return warnings, fmt.Errorf("%w: valid_url_trails has no usable entries", utils.ErrConfigValidation)
		}
		c.ValidURLTrails = trails
	}

	// RequestHeaders
	if len(c.RequestHeaders) == 0 {
		c.RequestHeaders = DefaultRequestHeaders()
	}

	classifierWarnings, err := c.Classifier.validate()
	warnings = append(warnings, classifierWarnings...)
	if err != nil {
		return warnings, err
	}

	c.Sources.applyDefaults()

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validate applies classifier defaults and checks the dialog pattern compiles
func (c *ClassifierConfig) validate() (warnings []string, err error) {
	if c.PhotoIndexTitle == "" {
		c.PhotoIndexTitle = DefaultPhotoIndexTitle
	}
	if c.PhotoIndexFileName == "" {
		c.PhotoIndexFileName = DefaultPhotoIndexFileName
	}
	if c.DialogFilePattern == "" {
		c.DialogFilePattern = DefaultDialogFilePattern
	}
	if _, err := utils.CompileRegexPattern("classifier.dialog_file_pattern", c.DialogFilePattern); err != nil {
		return warnings, err
	}
	if strings.TrimSpace(c.PhotoIndexTitle) != c.PhotoIndexTitle {
		warnings = append(warnings, "classifier.photo_index_title has surrounding whitespace, trimming it")
		c.PhotoIndexTitle = strings.TrimSpace(c.PhotoIndexTitle)
	}
	return warnings, nil
}

func (s *SourcesConfig) applyDefaults() {
	if s.AttachmentDirName == "" {
		s.AttachmentDirName = DefaultAttachmentDirName
	}
	if s.DialogDirName == "" {
		s.DialogDirName = DefaultDialogDirName
	}
	if s.GirlsDirName == "" {
		s.GirlsDirName = DefaultGirlsDirName
	}
	if s.BoysDirName == "" {
		s.BoysDirName = DefaultBoysDirName
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	// Archive links concentrate on a handful of CDN hosts
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.Concurrency
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
