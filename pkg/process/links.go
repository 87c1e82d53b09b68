package process

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/parse"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

const (
	incomingMessageClass = "im_in"
	authorSelector       = "div.im_log_author_chat_name"
	dateSelector         = "a.im_date_link"
	exportDateLayout     = "02.01.2006 15:04"
	compactDateLayout    = "200601021504"
)

// containerSelectors describes one export sub-format
type containerSelectors struct {
	message string // Incoming message container
	anchor  string // Download anchors, relative to the container or the document
}

var shapeSelectors = map[config.ContainerShape]containerSelectors{
	config.ShapeDiv: {
		message: "div." + incomingMessageClass,
		anchor:  "a.download_photo_type[href]",
	},
	config.ShapeTableRow: {
		message: "tr." + incomingMessageClass,
		anchor:  "a[href]:not(.im_date_link)",
	},
}

// extractRule pulls links out of one parsed document of a given class
type extractRule func(doc *goquery.Document, src models.Document, sel containerSelectors) ([]models.ExtractedLink, error)

// LinkExtractor turns classified documents into image references
type LinkExtractor struct {
	shape config.ContainerShape
	rules map[models.DocumentClass]extractRule
	log   *logrus.Entry
}

// NewLinkExtractor creates a LinkExtractor. shape may be auto, div or table_row.
func NewLinkExtractor(shape config.ContainerShape, log *logrus.Entry) *LinkExtractor {
	if shape == "" {
		shape = config.ShapeAuto
	}
	return &LinkExtractor{
		shape: shape,
		rules: map[models.DocumentClass]extractRule{
			models.ClassDialog:     extractDialogLinks,
			models.ClassPhotoIndex: extractPhotoIndexLinks,
		},
		log: log,
	}
}

// Extract loads src from disk and returns its links in document order.
// An error aborts this document only.
func (e *LinkExtractor) Extract(src models.Document) ([]models.ExtractedLink, error) {
	doc, err := parse.LoadDocument(src.Path)
	if err != nil {
		return nil, err
	}
	return e.ExtractFrom(doc, src)
}

// ExtractFrom applies the rule for src.Class to an already parsed document
func (e *LinkExtractor) ExtractFrom(doc *goquery.Document, src models.Document) ([]models.ExtractedLink, error) {
	rule, ok := e.rules[src.Class]
	if !ok {
		return nil, fmt.Errorf("%w: no extraction rule for class '%s' (%s)", utils.ErrIncorrectFile, src.Class, src.Path)
	}
	shape := e.ShapeFor(src.Path)
	links, err := rule(doc, src, shapeSelectors[shape])
	if err != nil {
		return nil, fmt.Errorf("extract '%s': %w", src.Path, err)
	}
	e.log.WithFields(logrus.Fields{"path": src.Path, "class": src.Class, "shape": shape}).Debugf("%d links parsed", len(links))
	return links, nil
}

// ShapeFor resolves the container shape for a path.
// In auto mode .html exports use div containers and everything else table rows.
func (e *LinkExtractor) ShapeFor(path string) config.ContainerShape {
	if e.shape != config.ShapeAuto {
		return e.shape
	}
	if strings.HasSuffix(strings.ToLower(path), ".html") {
		return config.ShapeDiv
	}
	return config.ShapeTableRow
}

func extractDialogLinks(doc *goquery.Document, src models.Document, sel containerSelectors) ([]models.ExtractedLink, error) {
	var links []models.ExtractedLink
	var firstErr error

	doc.Find(sel.message).EachWithBreak(func(i int, msg *goquery.Selection) bool {
		anchors := msg.Find(sel.anchor)
		if anchors.Length() == 0 {
			return true
		}

		author := msg.Find(authorSelector).First()
		if author.Length() == 0 {
			firstErr = fmt.Errorf("%w: message %d has download links but no author", utils.ErrParsing, i)
			return false
		}
		dateNode := msg.Find(dateSelector).First()
		if dateNode.Length() == 0 {
			firstErr = fmt.Errorf("%w: message %d has download links but no date", utils.ErrParsing, i)
			return false
		}
		date, err := compactDate(dateNode.Text())
		if err != nil {
			firstErr = fmt.Errorf("%w: message %d: %w", utils.ErrParsing, i, err)
			return false
		}

		authorName := strings.TrimSpace(author.Text())
		anchors.Each(func(_ int, a *goquery.Selection) {
			// Empty href: marker without a target, skipped
			if href, _ := a.Attr("href"); href != "" {
				links = append(links, models.ExtractedLink{Source: src, URL: href, Author: authorName, Date: date})
			}
		})
		return true
	})

	if firstErr != nil {
		return nil, firstErr
	}
	return links, nil
}

func extractPhotoIndexLinks(doc *goquery.Document, src models.Document, sel containerSelectors) ([]models.ExtractedLink, error) {
	var links []models.ExtractedLink
	doc.Find(sel.anchor).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href != "" && utils.HasHTTPScheme(href) {
			links = append(links, models.ExtractedLink{Source: src, URL: href})
		}
	})
	return links, nil
}

// compactDate converts "dd.mm.yyyy HH:MM" to "yyyymmddHHMM"
func compactDate(raw string) (string, error) {
	t, err := time.Parse(exportDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("bad date '%s': %w", raw, err)
	}
	return t.Format(compactDateLayout), nil
}
