package parse

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// LoadDocument reads an exported HTML file and parses it into a goquery document.
// Older exports are windows-1251 with a <meta charset> declaration; the
// declared or sniffed encoding is decoded to UTF-8 before parsing.
func LoadDocument(path string) (*goquery.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", utils.ErrFilesystem, path, err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes raw export bytes and parses them.
func ParseDocument(data []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(decodedReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML parse: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// decodedReader picks the encoding from BOM or <meta>, falling back to UTF-8
// when the content is valid UTF-8 and nothing was declared.
func decodedReader(data []byte) io.Reader {
	enc, name, certain := charset.DetermineEncoding(data, "text/html")
	if name == "utf-8" || (!certain && name == "windows-1252" && utf8.Valid(data)) {
		return bytes.NewReader(data)
	}
	return enc.NewDecoder().Reader(bytes.NewReader(data))
}
