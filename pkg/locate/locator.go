package locate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// NameClassifier classifies a document from its file name alone
type NameClassifier interface {
	ClassifyName(path string) models.DocumentClass
}

// audienceDir is one enabled "<section root>/<audience>" subtree
type audienceDir struct {
	path  string
	class models.DocumentClass
}

// Locator finds export documents in an archive directory tree
type Locator struct {
	sources    config.SourcesConfig
	classifier NameClassifier
	log        *logrus.Entry
}

// NewLocator creates a Locator for the enabled source categories
func NewLocator(sources config.SourcesConfig, classifier NameClassifier, log *logrus.Entry) *Locator {
	return &Locator{
		sources:    sources,
		classifier: classifier,
		log:        log,
	}
}

// Locate walks root and returns every document under an enabled audience
// directory whose name classifies as the class of its section.
// Documents are returned in lexical walk order.
func (l *Locator) Locate(root string) ([]models.Document, error) {
	if !l.sources.AnyEnabled() {
		return nil, utils.ErrNoSources
	}

	var (
		docs    []models.Document
		enabled []audienceDir
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			l.log.WithError(err).Warnf("Skipping unreadable path '%s'", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		switch d.Name() {
		case l.sources.AttachmentDirName:
			enabled = append(enabled, l.sectionDirs(path, models.ClassPhotoIndex, l.sources.AttachmentGirls, l.sources.AttachmentBoys)...)
		case l.sources.DialogDirName:
			enabled = append(enabled, l.sectionDirs(path, models.ClassDialog, l.sources.ChatGirls, l.sources.ChatBoys)...)
		}

		class, ok := classFor(path, enabled)
		if !ok {
			return nil
		}
		found, err := l.documentsIn(path, class)
		if err != nil {
			l.log.WithError(err).Warnf("Skipping directory '%s'", path)
			return nil
		}
		docs = append(docs, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking '%s': %w", utils.ErrFilesystem, root, err)
	}

	l.log.WithField("root", root).Infof("%d documents located", len(docs))
	return docs, nil
}

func (l *Locator) sectionDirs(sectionRoot string, class models.DocumentClass, girls, boys bool) []audienceDir {
	var dirs []audienceDir
	if girls {
		dirs = append(dirs, audienceDir{path: filepath.Join(sectionRoot, l.sources.GirlsDirName), class: class})
	}
	if boys {
		dirs = append(dirs, audienceDir{path: filepath.Join(sectionRoot, l.sources.BoysDirName), class: class})
	}
	if len(dirs) > 0 {
		l.log.WithFields(logrus.Fields{"section": sectionRoot, "class": class}).Debug("Section root found")
	}
	return dirs
}

// classFor reports the section class of dir if it is inside an enabled audience directory
func classFor(dir string, enabled []audienceDir) (models.DocumentClass, bool) {
	for _, a := range enabled {
		if isWithin(dir, a.path) {
			return a.class, true
		}
	}
	return models.ClassUnknown, false
}

func isWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// documentsIn lists the files directly in dir that classify as want.
// A directory holding no .htm/.html file yields nothing.
func (l *Locator) documentsIn(dir string, want models.DocumentClass) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading '%s': %w", utils.ErrFilesystem, dir, err)
	}

	hasHTML := false
	for _, e := range entries {
		if !e.IsDir() && utils.IsHTMLFileName(e.Name()) {
			hasHTML = true
			break
		}
	}
	if !hasHTML {
		return nil, nil
	}

	var docs []models.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if l.classifier.ClassifyName(path) == want {
			docs = append(docs, models.Document{Path: path, Class: want})
		}
	}
	return docs, nil
}
