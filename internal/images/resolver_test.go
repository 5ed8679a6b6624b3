package images

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"harnessdoc/internal/harness"
	"harnessdoc/internal/logging"
)

// stubScraper returns a fixed payload and counts calls.
type stubScraper struct {
	data  []byte
	url   string
	calls int
}

func (s *stubScraper) Name() string { return "stub" }

func (s *stubScraper) Scrape(_ context.Context, _ *harness.Part) ([]byte, string, string, error) {
	s.calls++
	return s.data, s.url, "png", nil
}

func testPart() *harness.Part {
	return &harness.Part{
		ID:           "conn-dt04",
		PrimaryPN:    "CONN-001",
		Manufacturer: "Deutsch",
		MPN:          "DT04-2P",
		Description:  "2-way receptacle",
	}
}

func openCache(t *testing.T) *CacheService {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	return c
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Deutsch_DT04-2P", "Deutsch_DT04-2P"},
		{"TE Connectivity_1-480698-0", "TE_Connectivity_1-480698-0"},
		{"weird/name: v2", "weird_name_v2"},
		{"__trim me__", "trim_me"},
		{"a***b", "a_b"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	path, err := c.Store("k1", "k1.png", "scraped", "https://example.com/p.png", []byte("img-bytes"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if got, ok := c.Lookup("k1"); !ok || got != path {
		t.Fatalf("Lookup = %q, %v", got, ok)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Manifest survives a reopen with full provenance.
	c2, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, ok := c2.Lookup("k1"); !ok || got != path {
		t.Fatalf("Lookup after reopen = %q, %v", got, ok)
	}
	entry := c2.manifest.Entries["k1"]
	if entry.Source != "scraped" {
		t.Errorf("entry source = %q, want scraped", entry.Source)
	}
	if entry.SHA256 == "" || len(entry.SHA256) != 64 {
		t.Errorf("entry sha256 = %q", entry.SHA256)
	}
	if entry.SourceURL != "https://example.com/p.png" {
		t.Errorf("entry source url = %q", entry.SourceURL)
	}
	if entry.BuildID == "" || entry.FetchedAt == "" {
		t.Errorf("entry provenance incomplete: %+v", entry)
	}
}

func TestCacheLookupRejectsTamperedFile(t *testing.T) {
	c := openCache(t)
	path, err := c.Store("k1", "k1.png", "local", "", []byte("original"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	writeFile(t, path, []byte("tampered"))
	if _, ok := c.Lookup("k1"); ok {
		t.Error("Lookup should miss when file content no longer matches the manifest")
	}
}

func TestResolveDeclared(t *testing.T) {
	docDir := t.TempDir()
	writeFile(t, filepath.Join(docDir, "img", "j1.png"), []byte("x"))

	part := testPart()
	part.Image = &harness.ImageSpec{Src: "img/j1.png"}
	r := NewResolver(Config{DocDir: docDir, Offline: true}, openCache(t), nil, logging.NewNop())

	res, err := r.Resolve(context.Background(), part)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != "declared" || res.Path != filepath.Join(docDir, "img", "j1.png") {
		t.Errorf("resolution = %+v", res)
	}

	// A declared path that does not exist is an error, not a fallthrough.
	part2 := testPart()
	part2.ID = "other"
	part2.Image = &harness.ImageSpec{Src: "img/absent.png"}
	if _, err := r.Resolve(context.Background(), part2); err == nil {
		t.Error("expected error for missing declared image")
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	overrides := t.TempDir()
	// Both stems present: manufacturer_mpn wins over the part number, and
	// png wins over jpg.
	writeFile(t, filepath.Join(overrides, "Deutsch_DT04-2P.jpg"), []byte("a"))
	writeFile(t, filepath.Join(overrides, "Deutsch_DT04-2P.png"), []byte("b"))
	writeFile(t, filepath.Join(overrides, "CONN-001.png"), []byte("c"))

	r := NewResolver(Config{OverrideDir: overrides, Offline: true}, openCache(t), nil, logging.NewNop())
	res, err := r.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != "override" || filepath.Base(res.Path) != "Deutsch_DT04-2P.png" {
		t.Errorf("resolution = %+v", res)
	}

	// With only the part-number stem, it is used.
	os.Remove(filepath.Join(overrides, "Deutsch_DT04-2P.jpg"))
	os.Remove(filepath.Join(overrides, "Deutsch_DT04-2P.png"))
	r2 := NewResolver(Config{OverrideDir: overrides, Offline: true}, openCache(t), nil, logging.NewNop())
	res, err = r2.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(res.Path) != "CONN-001.png" {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolveScrapeStoresInCache(t *testing.T) {
	cache := openCache(t)
	scraper := &stubScraper{data: []byte("scraped"), url: "https://vendor.example/dt04.png"}
	r := NewResolver(Config{}, cache, scraper, logging.NewNop())

	res, err := r.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != "scrape" {
		t.Fatalf("resolution = %+v", res)
	}
	if _, ok := cache.Lookup("Deutsch_DT04-2P"); !ok {
		t.Error("scraped image should be cached")
	}

	// Memoized: a second resolve never re-fetches.
	if _, err := r.Resolve(context.Background(), testPart()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scraper.calls != 1 {
		t.Errorf("scraper calls = %d, want 1", scraper.calls)
	}

	// A fresh resolver over the same cache hits the cache tier.
	r2 := NewResolver(Config{}, cache, scraper, logging.NewNop())
	res, err = r2.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != "cache" {
		t.Errorf("resolution = %+v, want cache hit", res)
	}
	if scraper.calls != 1 {
		t.Errorf("scraper calls = %d, want 1", scraper.calls)
	}
}

func TestResolveDistinguishesPartsSharingAnID(t *testing.T) {
	// Inline connector parts inherit the connector id, so two documents in
	// the same batch can both carry a part called J1. Resolution must key on
	// manufacturer and MPN, never the document-local id.
	overrides := t.TempDir()
	writeFile(t, filepath.Join(overrides, "Molex_43025-0400.png"), []byte("a"))
	writeFile(t, filepath.Join(overrides, "JST_PHR-4.png"), []byte("b"))

	r := NewResolver(Config{OverrideDir: overrides, Offline: true}, openCache(t), nil, logging.NewNop())

	first := &harness.Part{ID: "J1", Manufacturer: "Molex", MPN: "43025-0400"}
	second := &harness.Part{ID: "J1", Manufacturer: "JST", MPN: "PHR-4"}

	res, err := r.Resolve(context.Background(), first)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(res.Path) != "Molex_43025-0400.png" {
		t.Errorf("first resolution = %+v", res)
	}
	res, err = r.Resolve(context.Background(), second)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(res.Path) != "JST_PHR-4.png" {
		t.Errorf("second resolution = %+v", res)
	}
}

func TestResolveUpdateBypassesCache(t *testing.T) {
	cache := openCache(t)
	if _, err := cache.Store("Deutsch_DT04-2P", "Deutsch_DT04-2P.png", "scraped", "old", []byte("stale")); err != nil {
		t.Fatal(err)
	}
	scraper := &stubScraper{data: []byte("fresh"), url: "https://vendor.example/new.png"}
	r := NewResolver(Config{Update: true}, cache, scraper, logging.NewNop())

	res, err := r.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != "scrape" || scraper.calls != 1 {
		t.Errorf("resolution = %+v, calls = %d", res, scraper.calls)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil || string(data) != "fresh" {
		t.Errorf("cached content = %q, %v", data, err)
	}
}

func TestResolveNeverScrapesInCI(t *testing.T) {
	t.Setenv("CI", "true")
	scraper := &stubScraper{data: []byte("x"), url: "u"}
	r := NewResolver(Config{}, openCache(t), scraper, logging.NewNop())

	res, err := r.Resolve(context.Background(), testPart())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scraper.calls != 0 {
		t.Errorf("scraper called %d times under CI", scraper.calls)
	}
	if !res.Missing {
		t.Errorf("resolution = %+v, want missing", res)
	}
}

func TestMissingPolicies(t *testing.T) {
	t.Run("allow", func(t *testing.T) {
		r := NewResolver(Config{Offline: true, Policy: MissingAllow}, openCache(t), nil, logging.NewNop())
		res, err := r.Resolve(context.Background(), testPart())
		if err != nil || !res.Missing || res.Path != "" {
			t.Errorf("resolution = %+v, err = %v", res, err)
		}
	})
	t.Run("require", func(t *testing.T) {
		r := NewResolver(Config{Offline: true, Policy: MissingRequire}, openCache(t), nil, logging.NewNop())
		if _, err := r.Resolve(context.Background(), testPart()); err == nil {
			t.Error("expected error under require policy")
		}
	})
	t.Run("placeholder", func(t *testing.T) {
		cache := openCache(t)
		r := NewResolver(Config{Offline: true, Policy: MissingPlaceholder}, cache, nil, logging.NewNop())
		res, err := r.Resolve(context.Background(), testPart())
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Source != "placeholder" {
			t.Fatalf("resolution = %+v", res)
		}
		data, err := os.ReadFile(res.Path)
		if err != nil {
			t.Fatal(err)
		}
		if got := string(data); !strings.Contains(got, "DT04-2P") {
			t.Errorf("placeholder should name the part: %s", got)
		}
		if entry := cache.manifest.Entries["placeholder-Deutsch_DT04-2P"]; entry.Source != "placeholder" {
			t.Errorf("manifest source = %q, want placeholder", entry.Source)
		}
	})
}

func TestResolveErrorNamesThePart(t *testing.T) {
	r := NewResolver(Config{Offline: true, Policy: MissingRequire}, openCache(t), nil, logging.NewNop())
	_, err := r.Resolve(context.Background(), testPart())
	var rerr *ResolutionError
	if !errors.As(err, &rerr) || rerr.Part != "conn-dt04" {
		t.Fatalf("err = %#v, want *ResolutionError for conn-dt04", err)
	}
	if got := err.Error(); strings.Count(got, "conn-dt04") != 1 {
		t.Errorf("error message repeats the part: %q", got)
	}
}
