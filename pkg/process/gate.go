package process

import (
	"strings"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// Verdict is the gate's decision for one descriptor
type Verdict int

const (
	VerdictAccepted  Verdict = iota // Recorded and appended to the batch
	VerdictDuplicate                // Path already admitted this run
	VerdictInvalid                  // URL failed the structural check
)

// String implements fmt.Stringer for logging
func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictInvalid:
		return "invalid"
	}
	return "unknown"
}

// Gate deduplicates descriptors by destination path and drops malformed URLs.
// It is used only from the single goroutine that assembles the batch, so it holds no lock.
type Gate struct {
	trails []string
	seen   map[string]struct{}
	batch  []models.ImageDescriptor
}

// NewGate creates a gate accepting URLs that end with one of trails
func NewGate(trails []string) *Gate {
	return &Gate{
		trails: append([]string(nil), trails...),
		seen:   make(map[string]struct{}),
	}
}

// Check decides on d and records it when accepted.
// The first descriptor for a path wins; invalid URLs never claim a path.
func (g *Gate) Check(d models.ImageDescriptor) Verdict {
	if _, dup := g.seen[d.Path]; dup {
		return VerdictDuplicate
	}
	if !ValidImageURL(d.URL, g.trails) {
		return VerdictInvalid
	}
	g.seen[d.Path] = struct{}{}
	g.batch = append(g.batch, d)
	return VerdictAccepted
}

// Admit reports whether d was accepted
func (g *Gate) Admit(d models.ImageDescriptor) bool {
	return g.Check(d) == VerdictAccepted
}

// Batch returns the admitted descriptors in admission order
func (g *Gate) Batch() []models.ImageDescriptor {
	return g.batch
}

// Len returns the number of admitted descriptors
func (g *Gate) Len() int {
	return len(g.batch)
}

// ValidImageURL is the structural check: absolute http(s) URL ending with a known trailer
func ValidImageURL(rawURL string, trails []string) bool {
	if !utils.HasHTTPScheme(rawURL) {
		return false
	}
	for _, t := range trails {
		if strings.HasSuffix(rawURL, t) {
			return true
		}
	}
	return false
}
