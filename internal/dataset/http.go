package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSource fetches the dataset from a URL on every open.
type HTTPSource struct {
	client *resty.Client
	url    string
}

// NewHTTPSource creates a source that downloads the dataset from url.
func NewHTTPSource(url string) *HTTPSource {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &HTTPSource{
		client: client,
		url:    url,
	}
}

// Open performs the GET request and hands back the raw body stream.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset from %s: %w", s.url, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.RawBody(), nil
	case http.StatusNotFound:
		resp.RawBody().Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.url)
	default:
		resp.RawBody().Close()
		return nil, fmt.Errorf("dataset fetch from %s returned status %d", s.url, resp.StatusCode())
	}
}

// Location returns the dataset URL.
func (s *HTTPSource) Location() string {
	return s.url
}
