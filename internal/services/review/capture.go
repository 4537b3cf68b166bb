package review

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/models"
)

const (
	defaultSnapshotBytes  = 16 * 1024
	defaultCaptureTimeout = 15 * time.Second

	// captureReadLimit bounds how much HTML is read before conversion
	captureReadLimit = 2 << 20
)

// captureClient fetches cited pages and converts them into bounded
// markdown snapshots stored on the citation record.
type captureClient struct {
	client   *http.Client
	maxBytes int
	logger   arbor.ILogger
}

func newCaptureClient(cfg *common.ReviewConfig, logger arbor.ILogger) *captureClient {
	timeout := defaultCaptureTimeout
	if cfg.CaptureTimeout != "" {
		if parsed, err := time.ParseDuration(cfg.CaptureTimeout); err == nil && parsed > 0 {
			timeout = parsed
		} else {
			logger.Warn().Str("capture_timeout", cfg.CaptureTimeout).Msg("Invalid capture timeout, using default")
		}
	}

	maxBytes := cfg.MaxSnapshotBytes
	if maxBytes <= 0 {
		maxBytes = defaultSnapshotBytes
	}

	return &captureClient{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// enrich fetches each cited page once and fills in the snapshot plus a
// page title when grounding omitted one. Fetch failures skip the
// citation; a review never fails because a cited site was down.
func (c *captureClient) enrich(ctx context.Context, claims []*models.ClaimRecord) {
	type page struct {
		title    string
		markdown string
	}
	fetched := make(map[string]*page)

	for _, claim := range claims {
		for i := range claim.Citations {
			citation := &claim.Citations[i]
			if citation.URI == "" {
				continue
			}

			snap, seen := fetched[citation.URI]
			if !seen {
				title, markdown, err := c.capture(ctx, citation.URI)
				if err != nil {
					c.logger.Warn().Err(err).Str("uri", citation.URI).Msg("Citation capture failed, skipping")
					fetched[citation.URI] = nil
					continue
				}
				snap = &page{title: title, markdown: markdown}
				fetched[citation.URI] = snap
			}
			if snap == nil {
				continue
			}

			citation.Snapshot = snap.markdown
			if citation.Title == "" {
				citation.Title = snap.title
			}
		}
	}
}

// capture fetches one page and converts its HTML into truncated markdown
func (c *captureClient) capture(ctx context.Context, uri string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch cited page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("cited page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, captureReadLimit))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse cited page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Remove()
	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		if html, err = doc.Html(); err != nil {
			return "", "", fmt.Errorf("failed to extract page content: %w", err)
		}
	}

	converter := md.NewConverter(uri, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert page to markdown: %w", err)
	}

	return title, truncateBytes(strings.TrimSpace(markdown), c.maxBytes), nil
}

// truncateBytes cuts text at a byte bound without splitting a rune
func truncateBytes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
