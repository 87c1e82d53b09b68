package process

import (
	"path/filepath"
	"strings"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// DescriptorBuilder derives local destinations for extracted links.
// Paths land in <dir of source>/<photoDir>/<date>_<author>_<last url segment>.
type DescriptorBuilder struct {
	photoDir string
}

// NewDescriptorBuilder creates a builder writing into photoDir next to each source document
func NewDescriptorBuilder(photoDir string) *DescriptorBuilder {
	return &DescriptorBuilder{photoDir: photoDir}
}

// Build derives the descriptor for one link
func (b *DescriptorBuilder) Build(link models.ExtractedLink) models.ImageDescriptor {
	return models.ImageDescriptor{
		Path: b.BuildPath(link.Source.Path, link.URL, link.Author, link.Date),
		URL:  link.URL,
	}
}

// BuildPath is total and deterministic: equal inputs always give equal paths.
func (b *DescriptorBuilder) BuildPath(sourcePath, rawURL, author, date string) string {
	return filepath.Join(filepath.Dir(sourcePath), b.photoDir, ImageFileName(rawURL, author, date))
}

// ImageFileName joins date, author and the URL's last path segment with "_".
// The query string is cut from the segment first, runs of "_" are collapsed,
// and separators in author are flattened so the name stays one path element.
func ImageFileName(rawURL, author, date string) string {
	segment := rawURL
	if i := strings.IndexByte(segment, '?'); i >= 0 {
		segment = segment[:i]
	}
	if i := strings.LastIndexByte(segment, '/'); i >= 0 {
		segment = segment[i+1:]
	}
	name := strings.Join([]string{date, utils.FlattenPathComponent(author), segment}, "_")
	return utils.CollapseUnderscores(name)
}
