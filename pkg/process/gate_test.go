package process

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/models"
)

func TestGate_Check(t *testing.T) {
	g := NewGate(config.DefaultValidURLTrails)

	assert.Equal(t, VerdictAccepted, g.Check(models.ImageDescriptor{Path: "p/1.jpg", URL: "http://x/1.jpg"}))
	assert.Equal(t, VerdictDuplicate, g.Check(models.ImageDescriptor{Path: "p/1.jpg", URL: "http://y/1.jpg"}))
	assert.Equal(t, VerdictInvalid, g.Check(models.ImageDescriptor{Path: "p/2.png", URL: "http://x/2.png"}))
	assert.Equal(t, VerdictAccepted, g.Check(models.ImageDescriptor{Path: "p/3", URL: "https://x/3?type=album"}))

	require.Equal(t, 2, g.Len())
	assert.Equal(t, "http://x/1.jpg", g.Batch()[0].URL, "first writer wins")
}

func TestGate_InvalidDoesNotClaimPath(t *testing.T) {
	g := NewGate(config.DefaultValidURLTrails)

	assert.False(t, g.Admit(models.ImageDescriptor{Path: "p/1.jpg", URL: "ftp://x/1.jpg"}))
	assert.True(t, g.Admit(models.ImageDescriptor{Path: "p/1.jpg", URL: "http://x/1.jpg"}))
}

func TestGate_SameDerivedPathAdmitsOne(t *testing.T) {
	b := NewDescriptorBuilder("photo")
	src := models.Document{Path: "/dump/chat/history_1.html", Class: models.ClassDialog}
	g := NewGate(config.DefaultValidURLTrails)

	// Different hosts and queries, same (date, author, last segment)
	first := b.Build(models.ExtractedLink{Source: src, URL: "http://a/x/1.jpg", Author: "A", Date: "202001011000"})
	second := b.Build(models.ExtractedLink{Source: src, URL: "http://b/y/1.jpg?q=.jpg", Author: "A", Date: "202001011000"})
	require.Equal(t, first.Path, second.Path)

	g.Admit(first)
	g.Admit(second)
	assert.Equal(t, 1, g.Len())
}

func TestGate_DedupIndependentOfOrder(t *testing.T) {
	b := NewDescriptorBuilder("photo")
	src := models.Document{Path: "/dump/chat/history_1.html", Class: models.ClassDialog}

	var descs []models.ImageDescriptor
	for _, host := range []string{"a", "b", "c"} {
		for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg"} {
			descs = append(descs, b.Build(models.ExtractedLink{Source: src, URL: "http://" + host + "/" + name, Author: "A", Date: "d"}))
		}
	}

	rng := rand.New(rand.NewSource(42))
	for range 20 {
		rng.Shuffle(len(descs), func(i, j int) { descs[i], descs[j] = descs[j], descs[i] })
		g := NewGate(config.DefaultValidURLTrails)
		for _, d := range descs {
			g.Admit(d)
		}

		paths := make(map[string]int)
		for _, d := range g.Batch() {
			paths[d.Path]++
		}
		assert.Len(t, paths, 4)
		for p, n := range paths {
			assert.Equal(t, 1, n, "path %s admitted more than once", p)
		}
	}
}

func TestValidImageURL(t *testing.T) {
	trails := config.DefaultValidURLTrails
	tests := map[string]bool{
		"http://x/1.jpg":              true,
		"https://x/1.jpg":             true,
		"https://x/photo?type=album":  true,
		"HTTP://X/1.jpg":              true,
		"ftp://x/1.jpg":               false,
		"//x/1.jpg":                   false,
		"http://x/1.JPG":              false,
		"http://x/1.jpg?size=604x403": false,
		"":                            false,
	}
	for in, want := range tests {
		assert.Equal(t, want, ValidImageURL(in, trails), "ValidImageURL(%q)", in)
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", VerdictAccepted.String())
	assert.Equal(t, "duplicate", VerdictDuplicate.String())
	assert.Equal(t, "invalid", VerdictInvalid.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}
