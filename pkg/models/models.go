package models

import "time"

// Document is one exported HTML file with its resolved class
type Document struct {
	Path  string        `json:"path"`
	Class DocumentClass `json:"class"`
}

// ExtractedLink is one image reference found in a document.
// Date is yyyymmddHHMM or empty; Author may be empty.
type ExtractedLink struct {
	Source Document `json:"source"`
	URL    string   `json:"url"`
	Author string   `json:"author,omitempty"`
	Date   string   `json:"date,omitempty"`
}

// ImageDescriptor is a resolved destination for a remote image.
// Two descriptors denote the same image iff their Path values are equal.
type ImageDescriptor struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// DownloadOutcome is the terminal result for one descriptor
type DownloadOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	URL      string      `json:"url"`
	Path     string      `json:"path"`
	Reason   string      `json:"reason,omitempty"`   // err.Error() for failures
	Category string      `json:"category,omitempty"` // Error category for failures
	Err      error       `json:"-"`
}

// BatchSummary folds the outcomes of one downloader run
type BatchSummary struct {
	Total      int               `json:"total"`
	Skipped    int               `json:"skipped"`
	Downloaded int               `json:"downloaded"`
	Failed     int               `json:"failed"`
	Failures   []DownloadOutcome `json:"failures,omitempty"`
	ByCategory map[string]int    `json:"by_category,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Summarize folds outcomes into a summary. Downloaded is derived as
// total - skipped - failed.
func Summarize(outcomes []DownloadOutcome) BatchSummary {
	s := BatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
			s.Failures = append(s.Failures, o)
			if o.Category != "" {
				if s.ByCategory == nil {
					s.ByCategory = make(map[string]int)
				}
				s.ByCategory[o.Category]++
			}
		}
	}
	s.Downloaded = s.Total - s.Skipped - s.Failed
	return s
}
