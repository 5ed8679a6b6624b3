// resolver.go — tiered image resolution.
package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"harnessdoc/internal/harness"
)

// MissingPolicy decides what happens when no tier yields an image.
type MissingPolicy string

const (
	// MissingAllow resolves to no image; the resolution is flagged and the
	// caller reports a warning.
	MissingAllow MissingPolicy = "allow"
	// MissingPlaceholder substitutes a generated placeholder image.
	MissingPlaceholder MissingPolicy = "placeholder"
	// MissingRequire fails the resolution.
	MissingRequire MissingPolicy = "require"
)

// Extension preference when probing override directories.
var probeExts = []string{"png", "jpg", "svg"}

// ResolutionError is a failed resolution, tagged with the part it was for.
type ResolutionError struct {
	Part string
	Err  error
}

func (e *ResolutionError) Error() string { return "part " + e.Part + ": " + e.Err.Error() }

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolution is the outcome for one part.
type Resolution struct {
	// Path is the resolved image file, empty when Missing under MissingAllow.
	Path string
	// Source names the tier that produced the image: "declared", "override",
	// "cache", "scrape", "placeholder".
	Source string
	// Missing is set when no image was found and policy allowed it.
	Missing bool
}

// Config wires a Resolver.
type Config struct {
	// DocDir anchors relative declared image paths.
	DocDir string
	// OverrideDir is the local image directory probed before the cache.
	// Empty disables the tier.
	OverrideDir string
	// Offline disables the scrape tier entirely. Set automatically when a CI
	// environment is detected.
	Offline bool
	// Update makes resolution bypass cache reads and memoized results, so
	// every part is re-fetched. Fetched images still land in the cache.
	Update bool
	// Policy governs parts with no image. Defaults to MissingAllow.
	Policy MissingPolicy
}

// Resolver finds one image per part by walking its tiers in order. Results
// are memoized per part id for the life of the process, so a part shared by
// many connectors resolves exactly once.
type Resolver struct {
	cfg     Config
	cache   *CacheService
	scraper Scraper
	log     *zap.Logger

	mu   sync.Mutex
	memo map[string]Resolution
}

// NewResolver builds a resolver over the given cache. scraper may be nil to
// disable the network tier regardless of cfg.Offline.
func NewResolver(cfg Config, cache *CacheService, scraper Scraper, log *zap.Logger) *Resolver {
	if cfg.Policy == "" {
		cfg.Policy = MissingAllow
	}
	if InCI() {
		cfg.Offline = true
	}
	return &Resolver{
		cfg:     cfg,
		cache:   cache,
		scraper: scraper,
		log:     log,
		memo:    make(map[string]Resolution),
	}
}

// InCI reports whether the process runs under a CI environment. CI runs
// never touch the network, whatever the flags say.
func InCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("HARNESSDOC_OFFLINE") != ""
}

// Resolve finds the image for part. Memoization keys on the part's cache
// identity (manufacturer and MPN), not its model id: ids are only unique
// within one document, and a resolver is shared across a whole batch.
func (r *Resolver) Resolve(ctx context.Context, part *harness.Part) (Resolution, error) {
	key := cacheKey(part)
	if !r.cfg.Update {
		r.mu.Lock()
		res, ok := r.memo[key]
		r.mu.Unlock()
		if ok {
			return res, nil
		}
	}
	res, err := r.resolve(ctx, part)
	if err != nil {
		return Resolution{}, &ResolutionError{Part: part.ID, Err: err}
	}
	r.mu.Lock()
	r.memo[key] = res
	r.mu.Unlock()
	return res, nil
}

// tier is one resolution step. found=false means try the next tier.
type tier func(ctx context.Context, part *harness.Part) (res Resolution, found bool, err error)

func (r *Resolver) resolve(ctx context.Context, part *harness.Part) (Resolution, error) {
	tiers := []tier{r.tierDeclared, r.tierOverride, r.tierCache, r.tierScrape}
	for _, t := range tiers {
		res, found, err := t(ctx, part)
		if err != nil {
			return Resolution{}, err
		}
		if found {
			r.log.Debug("image resolved",
				zap.String("part", part.ID),
				zap.String("source", res.Source),
				zap.String("path", res.Path))
			return res, nil
		}
	}
	return r.missing(part)
}

// tierDeclared honors an explicit image declaration on the part. A declared
// path that does not exist is an error, never a silent fallthrough.
func (r *Resolver) tierDeclared(_ context.Context, part *harness.Part) (Resolution, bool, error) {
	if part.Image == nil || part.Image.Src == "" {
		return Resolution{}, false, nil
	}
	path := part.Image.Src
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.cfg.DocDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return Resolution{}, false, fmt.Errorf("declared image %s: %w", part.Image.Src, err)
	}
	return Resolution{Path: path, Source: "declared"}, true, nil
}

// tierOverride probes the local image directory: manufacturer_mpn first,
// then the primary part number, each across the extension preference order.
func (r *Resolver) tierOverride(_ context.Context, part *harness.Part) (Resolution, bool, error) {
	if r.cfg.OverrideDir == "" {
		return Resolution{}, false, nil
	}
	for _, stem := range overrideStems(part) {
		for _, ext := range probeExts {
			path := filepath.Join(r.cfg.OverrideDir, stem+"."+ext)
			if _, err := os.Stat(path); err == nil {
				return Resolution{Path: path, Source: "override"}, true, nil
			}
		}
	}
	return Resolution{}, false, nil
}

func (r *Resolver) tierCache(_ context.Context, part *harness.Part) (Resolution, bool, error) {
	if r.cfg.Update {
		return Resolution{}, false, nil
	}
	if path, ok := r.cache.Lookup(cacheKey(part)); ok {
		return Resolution{Path: path, Source: "cache"}, true, nil
	}
	return Resolution{}, false, nil
}

func (r *Resolver) tierScrape(ctx context.Context, part *harness.Part) (Resolution, bool, error) {
	if r.cfg.Offline || r.scraper == nil {
		return Resolution{}, false, nil
	}
	data, sourceURL, ext, err := r.scraper.Scrape(ctx, part)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("scrape: %w", err)
	}
	if data == nil {
		return Resolution{}, false, nil
	}
	path, err := r.cache.Store(cacheKey(part), cacheKey(part)+"."+ext, "scraped", sourceURL, data)
	if err != nil {
		return Resolution{}, false, err
	}
	return Resolution{Path: path, Source: "scrape"}, true, nil
}

func (r *Resolver) missing(part *harness.Part) (Resolution, error) {
	switch r.cfg.Policy {
	case MissingRequire:
		return Resolution{}, errors.New("no image found and images are required")
	case MissingPlaceholder:
		path, err := r.placeholder(part)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Path: path, Source: "placeholder"}, nil
	default:
		return Resolution{Missing: true}, nil
	}
}

// placeholder writes a small generated SVG naming the part into the cache.
func (r *Resolver) placeholder(part *harness.Part) (string, error) {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="160" height="120">
<rect width="160" height="120" fill="#eeeeee" stroke="#999999"/>
<text x="80" y="55" text-anchor="middle" font-family="sans-serif" font-size="11">no image</text>
<text x="80" y="72" text-anchor="middle" font-family="sans-serif" font-size="10">%s</text>
</svg>
`, xmlEscape(part.MPN))
	key := "placeholder-" + cacheKey(part)
	return r.cache.Store(key, key+".svg", "placeholder", "", []byte(svg))
}

// cacheKey builds the stable cache key for a part.
func cacheKey(part *harness.Part) string {
	return sanitizeFilename(part.Manufacturer + "_" + part.MPN)
}

// overrideStems lists the file stems probed in the override directory, most
// specific first.
func overrideStems(part *harness.Part) []string {
	stems := []string{sanitizeFilename(part.Manufacturer + "_" + part.MPN)}
	if part.PrimaryPN != "" {
		stems = append(stems, sanitizeFilename(part.PrimaryPN))
	}
	return stems
}

// sanitizeFilename maps arbitrary part identifiers onto portable file names.
// Anything outside [A-Za-z0-9._-] becomes an underscore; runs collapse.
func sanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' || r == '.' || r == '-' || r == '_'
		if ok {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
