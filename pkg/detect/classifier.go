package detect

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/parse"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// Classifier decides whether an export document is a photo index or a dialog
type Classifier struct {
	photoIndexTitle    string
	photoIndexFileName string
	dialogPattern      *regexp.Regexp
	log                *logrus.Entry
}

// NewClassifier compiles the configured rules
func NewClassifier(cfg config.ClassifierConfig, log *logrus.Entry) (*Classifier, error) {
	re, err := utils.CompileRegexPattern("classifier.dialog_file_pattern", cfg.DialogFilePattern)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		photoIndexTitle:    strings.TrimSpace(cfg.PhotoIndexTitle),
		photoIndexFileName: cfg.PhotoIndexFileName,
		dialogPattern:      re,
		log:                log,
	}, nil
}

// ClassifyName classifies by base name only.
// The dialog pattern is searched anywhere in the name, not anchored.
func (c *Classifier) ClassifyName(path string) models.DocumentClass {
	name := filepath.Base(path)
	switch {
	case name == c.photoIndexFileName:
		return models.ClassPhotoIndex
	case c.dialogPattern.MatchString(name):
		return models.ClassDialog
	}
	return models.ClassUnknown
}

// ClassifyTitle classifies by <title> text. An empty title gives ClassUnknown.
func (c *Classifier) ClassifyTitle(title string) models.DocumentClass {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return models.ClassUnknown
	case title == c.photoIndexTitle:
		return models.ClassPhotoIndex
	}
	return models.ClassDialog
}

// Classify applies the name rules and, when allowCheckContent is set and the
// name is inconclusive, parses the file and falls back to its title.
// The error is non-nil only when the content check could not read or parse the file.
func (c *Classifier) Classify(path string, allowCheckContent bool) (models.DocumentClass, error) {
	if class := c.ClassifyName(path); class != models.ClassUnknown {
		c.log.WithFields(logrus.Fields{"path": path, "class": class}).Debug("Classified by name")
		return class, nil
	}
	if !allowCheckContent {
		return models.ClassUnknown, nil
	}

	doc, err := parse.LoadDocument(path)
	if err != nil {
		return models.ClassUnknown, err
	}
	class := c.ClassifyTitle(documentTitle(doc))
	c.log.WithFields(logrus.Fields{"path": path, "class": class}).Debug("Classified by title")
	return class, nil
}

func documentTitle(doc *goquery.Document) string {
	return doc.Find("title").First().Text()
}
