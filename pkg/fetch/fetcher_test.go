package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/config"
	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second, // Generous timeout for tests
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// mockServer creates an httptest.Server that answers every request with status and body.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetch_Success(t *testing.T) {
	server, attempts := mockServer(t, http.StatusOK, "jpegbytes")
	fetcher := NewFetcher(testClient(), nil, 0, testLogger())

	data, err := fetcher.Fetch(context.Background(), server.URL+"/a.jpg")

	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetch_NonOKIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category string
	}{
		{"NotFound", http.StatusNotFound, "HTTP_404"},
		{"ServerError", http.StatusInternalServerError, "HTTP_5xx"},
		{"TooManyRequests", http.StatusTooManyRequests, "HTTP_429"},
		{"NoContent", http.StatusNoContent, "HTTP_OtherStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, tt.status, "ignored")
			fetcher := NewFetcher(testClient(), nil, 0, testLogger())

			data, err := fetcher.Fetch(context.Background(), server.URL)

			require.Error(t, err)
			assert.Nil(t, data)
			assert.True(t, errors.Is(err, utils.ErrBadStatus))
			assert.Equal(t, tt.category, utils.CategorizeError(err))
			assert.Equal(t, int32(1), attempts.Load(), "no retries expected")

			var statusErr *utils.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
		})
	}
}

func TestFetch_SendsConfiguredHeaders(t *testing.T) {
	var gotUA, gotAccept atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		gotAccept.Store(r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(testClient(), config.DefaultRequestHeaders(), 0, testLogger())
	_, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, config.DefaultUserAgent, gotUA.Load())
	assert.Equal(t, config.DefaultAcceptHeader, gotAccept.Load())
}

func TestFetch_MaxBodySize(t *testing.T) {
	server, _ := mockServer(t, http.StatusOK, strings.Repeat("x", 64))

	_, err := NewFetcher(testClient(), nil, 16, testLogger()).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrImageTooLarge))
	assert.Equal(t, "Policy_MaxSize", utils.CategorizeError(err))

	data, err := NewFetcher(testClient(), nil, 64, testLogger()).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestFetch_ContextCancelled(t *testing.T) {
	server, _ := mockServer(t, http.StatusOK, "x")
	fetcher := NewFetcher(testClient(), nil, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "System_ContextCanceled", utils.CategorizeError(err))
}

func TestFetch_InvalidURL(t *testing.T) {
	fetcher := NewFetcher(testClient(), nil, 0, testLogger())

	_, err := fetcher.Fetch(context.Background(), "http://bad host/a.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrRequestCreation))
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewFetcher(testClient(), nil, 0, testLogger()).Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, "Network_ConnectionRefused", utils.CategorizeError(err))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "sun9-1.userapi.com", HostOf("https://sun9-1.userapi.com/c1/a.jpg?size=1"))
	assert.Equal(t, "example.com", HostOf("http://example.com:8080/x"))
	assert.Equal(t, "", HostOf("://bad"))
}

func TestNewClient_AppliesSettings(t *testing.T) {
	cfg := config.Default().HTTPClientSettings
	disabled := false
	cfg.ForceAttemptHTTP2 = &disabled

	client := NewClient(cfg, testLogger())

	assert.Equal(t, cfg.Timeout, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.False(t, transport.ForceAttemptHTTP2)
	assert.Equal(t, cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
}
