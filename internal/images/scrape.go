// scrape.go — network image fetching from vendor sites.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"harnessdoc/internal/harness"
)

// Scraper fetches a product image for a part. Implementations return the
// image bytes, the URL they came from, and the file extension (without dot).
// A nil byte slice with nil error means the scraper has no image for this
// part; the resolver moves on.
type Scraper interface {
	// Name identifies the scraper in logs and manifest entries.
	Name() string
	// Scrape attempts a fetch. Honors ctx for cancellation.
	Scrape(ctx context.Context, part *harness.Part) (data []byte, sourceURL, ext string, err error)
}

// vendorTemplate maps a manufacturer name (lowercased) to an image URL
// pattern with a %s slot for the url-escaped MPN.
type vendorTemplate struct {
	manufacturer string
	pattern      string
	ext          string
}

// Built-in vendor endpoints. The set is deliberately small; site-specific
// scrapers can be added through Resolver options.
var vendorTemplates = []vendorTemplate{
	{"te connectivity", "https://www.te.com/catalog/products/%s/photo", "jpg"},
	{"molex", "https://www.molex.com/content/dam/molex/images/products/%s.jpg", "jpg"},
	{"deutsch", "https://www.te.com/catalog/products/%s/photo", "jpg"},
	{"jst", "https://www.jst.com/wp-content/uploads/parts/%s.jpg", "jpg"},
	{"amphenol", "https://www.amphenol.com/assets/images/products/%s.jpg", "jpg"},
}

const (
	scrapeTimeout  = 15 * time.Second
	scrapeAttempts = 3
	scrapeBackoff  = 500 * time.Millisecond
)

// VendorScraper fetches images from known manufacturer sites, rate limited
// and with bounded retry on transient failures.
type VendorScraper struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewVendorScraper builds the default scraper. perSecond bounds the outbound
// request rate across all vendors.
func NewVendorScraper(perSecond float64, log *zap.Logger) *VendorScraper {
	if perSecond <= 0 {
		perSecond = 2
	}
	return &VendorScraper{
		client:  &http.Client{Timeout: scrapeTimeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		log:     log,
	}
}

func (s *VendorScraper) Name() string { return "vendor" }

// Scrape tries the part's manufacturer endpoint, then each alternate's.
func (s *VendorScraper) Scrape(ctx context.Context, part *harness.Part) ([]byte, string, string, error) {
	type candidate struct{ manufacturer, mpn string }
	cands := []candidate{{part.Manufacturer, part.MPN}}
	for _, alt := range part.Alternates {
		cands = append(cands, candidate{alt.Manufacturer, alt.MPN})
	}

	for _, cand := range cands {
		tpl, ok := templateFor(cand.manufacturer)
		if !ok {
			continue
		}
		u := fmt.Sprintf(tpl.pattern, url.PathEscape(cand.mpn))
		data, err := s.fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", "", ctx.Err()
			}
			s.log.Debug("vendor fetch failed",
				zap.String("part", part.ID),
				zap.String("url", u),
				zap.Error(err))
			continue
		}
		if data != nil {
			return data, u, tpl.ext, nil
		}
	}
	return nil, "", "", nil
}

func templateFor(manufacturer string) (vendorTemplate, bool) {
	key := strings.ToLower(strings.TrimSpace(manufacturer))
	for _, tpl := range vendorTemplates {
		if tpl.manufacturer == key {
			return tpl, true
		}
	}
	return vendorTemplate{}, false
}

// fetch GETs u with retry on 5xx and network errors. A 404 is a clean miss
// (nil data, nil error); other 4xx codes are terminal errors.
func (s *VendorScraper) fetch(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < scrapeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(scrapeBackoff << (attempt - 1)):
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "harnessdoc/1.0")
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return data, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, nil
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
			continue
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
		}
	}
	return nil, lastErr
}
