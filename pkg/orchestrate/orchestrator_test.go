package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testAppConfig(t *testing.T, mutate func(*config.AppConfig)) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Concurrency = 4
	if mutate != nil {
		mutate(cfg)
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *config.AppConfig) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, Options{}, testLogger())
	require.NoError(t, err)
	return o
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func dialogHTML(author, date string, urls ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Chat</title></head><body><div class="im_in">`)
	fmt.Fprintf(&b, `<div class="im_log_author_chat_name">%s</div><a class="im_date_link" href="#">%s</a>`, author, date)
	for _, u := range urls {
		fmt.Fprintf(&b, `<a class="download_photo_type" href="%s">photo</a>`, u)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func photoIndexHTML(urls ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Общий лист фотографий</title></head><body>`)
	for _, u := range urls {
		fmt.Fprintf(&b, `<a class="download_photo_type" href="%s">photo</a>`, u)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func imageServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "gone") {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Write([]byte("img:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveDocuments(t *testing.T) {
	dir := t.TempDir()
	o := newTestOrchestrator(t, testAppConfig(t, nil))

	t.Run("missing target", func(t *testing.T) {
		_, _, err := o.ResolveDocuments(filepath.Join(dir, "nope.html"))
		assert.True(t, errors.Is(err, utils.ErrTargetNotFound))
	})

	t.Run("non html file", func(t *testing.T) {
		p := writeFile(t, filepath.Join(dir, "notes.txt"), "x")
		_, _, err := o.ResolveDocuments(p)
		assert.True(t, errors.Is(err, utils.ErrUnknownTarget))
	})

	t.Run("manual photo index by name", func(t *testing.T) {
		p := writeFile(t, filepath.Join(dir, "photos.html"), "<html></html>")
		mode, docs, err := o.ResolveDocuments(p)
		require.NoError(t, err)
		assert.Equal(t, ModeManual, mode)
		assert.Equal(t, []models.Document{{Path: p, Class: models.ClassPhotoIndex}}, docs)
	})

	t.Run("manual photo index by title", func(t *testing.T) {
		p := writeFile(t, filepath.Join(dir, "album.html"), photoIndexHTML())
		_, docs, err := o.ResolveDocuments(p)
		require.NoError(t, err)
		assert.Equal(t, models.ClassPhotoIndex, docs[0].Class)
	})

	t.Run("manual dialog by title", func(t *testing.T) {
		p := writeFile(t, filepath.Join(dir, "chat.htm"), "<html><head><title>Anna</title></head></html>")
		_, docs, err := o.ResolveDocuments(p)
		require.NoError(t, err)
		assert.Equal(t, models.ClassDialog, docs[0].Class)
	})

	t.Run("manual unknown class", func(t *testing.T) {
		p := writeFile(t, filepath.Join(dir, "blank.html"), "<html><body>no title</body></html>")
		_, _, err := o.ResolveDocuments(p)
		assert.True(t, errors.Is(err, utils.ErrIncorrectFile))
	})

	t.Run("directory without sources", func(t *testing.T) {
		mode, _, err := o.ResolveDocuments(dir)
		assert.Equal(t, ModeAuto, mode)
		assert.True(t, errors.Is(err, utils.ErrNoSources))
	})
}

func TestCollectBatch_WrongSchemeAdmitsNothing(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "photos.html"), photoIndexHTML("ftp://x/1.jpg"))
	o := newTestOrchestrator(t, testAppConfig(t, nil))

	res, err := o.CollectBatch(context.Background(), []models.Document{{Path: p, Class: models.ClassPhotoIndex}})
	require.NoError(t, err)
	assert.Zero(t, res.Collected, "photo index keeps http(s) links only")
	assert.Empty(t, res.Batch)
}

func TestCollectBatch_DedupAndValidation(t *testing.T) {
	dir := t.TempDir()
	// Same date, author and last segment from two hosts derive the same path
	p := writeFile(t, filepath.Join(dir, "history_1.html"), dialogHTML("A", "01.01.2020 10:00",
		"http://a/x/1.jpg", "http://b/y/1.jpg", "http://a/page.gif"))
	o := newTestOrchestrator(t, testAppConfig(t, nil))

	res, err := o.CollectBatch(context.Background(), []models.Document{{Path: p, Class: models.ClassDialog}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Collected)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Invalid)
	require.Len(t, res.Batch, 1)
	assert.Equal(t, "http://a/x/1.jpg", res.Batch[0].URL, "first in document order wins")
	assert.Equal(t, filepath.Join(dir, "photo", "202001011000_A_1.jpg"), res.Batch[0].Path)
}

func TestCollectBatch_BrokenDocumentIsIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "a", "history_1.html"), dialogHTML("A", "01.01.2020 10:00", "http://x/1.jpg"))
	bad := writeFile(t, filepath.Join(dir, "b", "history_2.html"), dialogHTML("B", "not a date", "http://x/2.jpg"))
	o := newTestOrchestrator(t, testAppConfig(t, nil))

	res, err := o.CollectBatch(context.Background(), []models.Document{
		{Path: good, Class: models.ClassDialog},
		{Path: bad, Class: models.ClassDialog},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocErrors)
	assert.Len(t, res.Batch, 1)
}

func TestCollectBatch_CancelledContext(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "photos.html"), photoIndexHTML("http://x/1.jpg"))
	o := newTestOrchestrator(t, testAppConfig(t, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.CollectBatch(ctx, []models.Document{{Path: p, Class: models.ClassPhotoIndex}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_AutoModeEndToEnd(t *testing.T) {
	srv, hits := imageServer(t)
	root := t.TempDir()
	chat := writeFile(t, filepath.Join(root, "Диалоги", "Девочки", "history_12.html"),
		dialogHTML("A", "01.01.2020 10:00", srv.URL+"/1.jpg", srv.URL+"/2.jpg", srv.URL+"/gone.jpg"))
	writeFile(t, filepath.Join(root, "Вложения", "Парни", "photos.html"),
		photoIndexHTML(srv.URL+"/album?type=album", "ftp://x/skip.jpg"))
	// Disabled audience
	writeFile(t, filepath.Join(root, "Диалоги", "Парни", "history_34.html"),
		dialogHTML("B", "01.01.2020 10:00", srv.URL+"/3.jpg"))

	cfg := testAppConfig(t, func(c *config.AppConfig) {
		c.Sources.ChatGirls = true
		c.Sources.AttachmentBoys = true
	})
	o := newTestOrchestrator(t, cfg)

	res, err := o.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, res.Mode)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 4, res.Collected)
	assert.Equal(t, 4, res.Valid)
	assert.Equal(t, 4, res.Summary.Total)
	assert.Equal(t, 3, res.Summary.Downloaded)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.Equal(t, map[string]int{"HTTP_410": 1}, res.Summary.ByCategory)
	assert.NotEmpty(t, res.RunID)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(chat), "photo", "202001011000_A_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "img:/1.jpg", string(data))
	_, err = os.Stat(filepath.Join(root, "Диалоги", "Парни", "photo"))
	assert.True(t, os.IsNotExist(err), "disabled audience is not downloaded")

	// Second run finds every successful image on disk
	before := hits.Load()
	again, err := o.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Summary.Skipped)
	assert.Zero(t, again.Summary.Downloaded)
	assert.Equal(t, 1, again.Summary.Failed)
	assert.Equal(t, before+1, hits.Load(), "only the failed image is fetched again")
	assert.NotEqual(t, res.RunID, again.RunID)
}

func TestRun_ManualModeWithOutcomeHook(t *testing.T) {
	srv, _ := imageServer(t)
	p := writeFile(t, filepath.Join(t.TempDir(), "history_1.html"),
		dialogHTML("A", "01.01.2020 10:00", srv.URL+"/1.jpg", srv.URL+"/2.jpg"))

	var seen atomic.Int32
	o, err := NewOrchestrator(testAppConfig(t, nil), Options{
		OnOutcome: func(models.DownloadOutcome) { seen.Add(1) },
	}, testLogger())
	require.NoError(t, err)

	res, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ModeManual, res.Mode)
	assert.Equal(t, 2, res.Summary.Downloaded)
	assert.Equal(t, int32(2), seen.Load())
}

func TestRun_FatalTargetErrors(t *testing.T) {
	o := newTestOrchestrator(t, testAppConfig(t, nil))
	_, err := o.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, utils.ErrTargetNotFound))
}

func TestSortedCategories(t *testing.T) {
	got := SortedCategories(map[string]int{"HTTP_404": 2, "Network_Timeout": 5, "HTTP_410": 2})
	assert.Equal(t, []string{"Network_Timeout", "HTTP_404", "HTTP_410"}, got)
	assert.Empty(t, SortedCategories(nil))
}
