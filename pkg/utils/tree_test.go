package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// testTreeLogger returns a logger that discards output
func testTreeLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestGenerateAndSaveTreeStructure_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	targetDir := filepath.Join(tmpDir, "target")
	if err := os.Mkdir(targetDir, 0755); err != nil {
		t.Fatalf("Failed to create target dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(targetDir, "photos.html"), []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	outputFile := filepath.Join(tmpDir, "tree.txt")
	if err := GenerateAndSaveTreeStructure(targetDir, outputFile, nil, testTreeLogger()); err != nil {
		t.Fatalf("GenerateAndSaveTreeStructure() error = %v", err)
	}

	content, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	output := string(content)
	if !strings.Contains(output, "└── photos.html") {
		t.Errorf("Output missing last entry 'photos.html': %s", output)
	}
	if !strings.Contains(output, "target/") {
		t.Errorf("Output missing root name: %s", output)
	}
}

func TestWriteTree_LabelerFiltersAndTags(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Dialogs"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Dialogs/history_1.htm", "Dialogs/notes.txt", "photos.html"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	labeler := func(path string) (string, bool) {
		switch filepath.Base(path) {
		case "history_1.htm":
			return "dialog", true
		case "photos.html":
			return "photo_index", true
		}
		return "", false
	}

	var sb strings.Builder
	if err := WriteTree(&sb, root, labeler, testTreeLogger()); err != nil {
		t.Fatalf("WriteTree() error = %v", err)
	}
	out := sb.String()

	if strings.Contains(out, "notes.txt") {
		t.Errorf("filtered file should not be listed: %s", out)
	}
	if !strings.Contains(out, "├── Dialogs/") {
		t.Errorf("directory should come first: %s", out)
	}
	if !strings.Contains(out, "│   └── history_1.htm  [dialog]") {
		t.Errorf("nested labeled entry missing: %s", out)
	}
	if !strings.Contains(out, "└── photos.html  [photo_index]") {
		t.Errorf("root labeled entry missing: %s", out)
	}
}

func TestGenerateAndSaveTreeStructure_MissingTarget(t *testing.T) {
	tmpDir := t.TempDir()
	err := GenerateAndSaveTreeStructure(filepath.Join(tmpDir, "nope"), filepath.Join(tmpDir, "tree.txt"), nil, testTreeLogger())
	if err == nil {
		t.Fatal("expected error for missing target directory")
	}
	if got := CategorizeError(err); got != "Filesystem_NotExist" {
		t.Errorf("CategorizeError() = %q, want Filesystem_NotExist", got)
	}
}
