package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

// TreeLabeler decides whether a file is listed in the tree and what tag follows its name.
// Directories are always listed.
type TreeLabeler func(path string) (label string, keep bool)

// GenerateAndSaveTreeStructure walks targetDir and writes a text tree of it to outputFilePath.
// A nil labeler lists every file untagged.
func GenerateAndSaveTreeStructure(targetDir, outputFilePath string, labeler TreeLabeler, log *logrus.Entry) error {
	log.Debugf("Starting tree generation for target: %s", targetDir)
	if _, err := os.Stat(targetDir); os.IsNotExist(err) {
		return fmt.Errorf("%w: target directory '%s' does not exist: %w", ErrFilesystem, targetDir, err)
	} else if err != nil {
		return fmt.Errorf("%w: error checking target directory '%s': %w", ErrFilesystem, targetDir, err)
	}

	file, err := os.Create(outputFilePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create output file '%s': %w", ErrFilesystem, outputFilePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteTree(writer, targetDir, labeler, log); err != nil {
		return err
	}
	return writer.Flush()
}

// WriteTree writes the tree for targetDir to w, headed by the root directory name.
func WriteTree(w io.Writer, targetDir string, labeler TreeLabeler, log *logrus.Entry) error {
	if labeler == nil {
		labeler = func(string) (string, bool) { return "", true }
	}
	if _, err := fmt.Fprintf(w, "Document Structure for: %s\n%s\n\n", targetDir, strings.Repeat("=", 24+len(targetDir))); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s/\n", filepath.Base(targetDir)); err != nil {
		return err
	}
	if err := walkDirRecursive(w, targetDir, "", labeler, log); err != nil {
		log.Errorf("Error occurred during recursive walk for '%s': %v", targetDir, err)
		return fmt.Errorf("error generating tree structure for '%s': %w", targetDir, err)
	}
	return nil
}

// walkDirRecursive writes one directory level and descends into subdirectories
func walkDirRecursive(w io.Writer, dirPath string, currentIndent string, labeler TreeLabeler, log *logrus.Entry) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Warnf("Failed to read directory '%s': %v", dirPath, err)
		return fmt.Errorf("%w: failed to read directory '%s': %w", ErrFilesystem, dirPath, err)
	}

	type line struct {
		entry os.DirEntry
		label string
	}
	lines := make([]line, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, line{entry: entry})
			continue
		}
		if label, keep := labeler(filepath.Join(dirPath, entry.Name())); keep {
			lines = append(lines, line{entry: entry, label: label})
		}
	}

	// Directories first, then case-insensitive by name
	slices.SortFunc(lines, func(a, b line) int {
		aIsDir, bIsDir := a.entry.IsDir(), b.entry.IsDir()
		if aIsDir && !bIsDir {
			return -1
		}
		if !aIsDir && bIsDir {
			return 1
		}
		return strings.Compare(strings.ToLower(a.entry.Name()), strings.ToLower(b.entry.Name()))
	})

	for i, l := range lines {
		isLast := i == len(lines)-1
		connector := entryPrefix
		if isLast {
			connector = lastEntryPrefix
		}

		name := l.entry.Name()
		if l.entry.IsDir() {
			name += "/"
		} else if l.label != "" {
			name += "  [" + l.label + "]"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", currentIndent, connector, name); err != nil {
			return err
		}

		if l.entry.IsDir() {
			nextIndent := currentIndent + verticalLine
			if isLast {
				nextIndent = currentIndent + indentPrefix
			}
			if err := walkDirRecursive(w, filepath.Join(dirPath, l.entry.Name()), nextIndent, labeler, log); err != nil {
				return err
			}
		}
	}
	return nil
}
