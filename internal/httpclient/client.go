// Package httpclient builds the shared HTTP clients used by the crawl-side
// services.
package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

const maxRedirects = 10

// NewCrawlClient creates the client the fetcher shares across all hosts:
// pooled keep-alive connections sized for concurrent company crawls, a capped
// redirect chain, and no client-level timeout because every request carries
// its own context deadline.
func NewCrawlClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
