package catalog

import (
	"context"
	"io"
	"net/http"
	"time"

	"modelscout/internal/domain"
)

// DocumentSource fetches the raw documentation payload for Tier-1 parsing.
type DocumentSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPDocumentSource fetches the docs page over plain HTTP GET.
type HTTPDocumentSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPDocumentSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "fetch docs", URL: s.URL, Err: err}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "fetch docs", URL: s.URL, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &domain.TransportError{Op: "fetch docs", URL: s.URL, Status: res.StatusCode}
	}
	return io.ReadAll(res.Body)
}
