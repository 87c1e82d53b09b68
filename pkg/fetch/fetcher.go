package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/vk-dump-extractor/pkg/utils"
)

// Fetcher performs single-attempt GET requests with a fixed header set.
// Failed fetches are terminal for the caller; there is no retry loop.
type Fetcher struct {
	client       *http.Client
	headers      map[string]string
	maxBodyBytes int64 // 0 = unlimited
	log          *logrus.Entry
}

// NewFetcher creates a Fetcher. headers is copied.
func NewFetcher(client *http.Client, headers map[string]string, maxBodyBytes int64, log *logrus.Entry) *Fetcher {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &Fetcher{
		client:       client,
		headers:      h,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// Fetch GETs rawURL and returns the whole body.
// Any status other than 200 yields a *utils.StatusError and no body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Surface context errors unwrapped from url.Error so callers can match them
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, urlErr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	reqLog := f.log.WithFields(logrus.Fields{"url": rawURL, "status_code": resp.StatusCode})
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		reqLog.Debug("Non-200 response")
		return nil, &utils.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if f.maxBodyBytes > 0 && resp.ContentLength > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: Content-Length %d > %d", utils.ErrImageTooLarge, resp.ContentLength, f.maxBodyBytes)
	}

	var body io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if f.maxBodyBytes > 0 && int64(len(data)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrImageTooLarge, f.maxBodyBytes)
	}

	reqLog.WithField("bytes", len(data)).Debug("Fetched")
	return data, nil
}

// HostOf returns the host part of rawURL, or "" if it does not parse
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
