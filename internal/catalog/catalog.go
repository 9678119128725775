// Package catalog fetches and caches two-line element sets from Celestrak.
// Element data is republished a few times per day and the files are small, so
// the loader keeps a plain-text copy per group on disk and refetches only
// when the cached copy goes stale.
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/sattrack/internal/monitoring"
	"github.com/banshee-data/sattrack/internal/security"
)

const defaultBaseURL = "https://celestrak.org/NORAD/elements/gp.php?FORMAT=tle&GROUP="

// ErrNotFound reports that a satellite name is absent from the catalog.
var ErrNotFound = errors.New("satellite not found in catalog")

// TLE is one two-line element set with its catalog name.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// ParseTLEs reads three-line TLE records (name, line 1, line 2) from r.
// Blank lines between records are tolerated; a record with mismatched line
// prefixes is an error.
func ParseTLEs(r io.Reader) ([]TLE, error) {
	var out []TLE
	sc := bufio.NewScanner(r)

	var lines []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) < 3 {
			continue
		}
		if !strings.HasPrefix(lines[1], "1 ") || !strings.HasPrefix(lines[2], "2 ") {
			return nil, fmt.Errorf("malformed TLE record for %q", strings.TrimSpace(lines[0]))
		}
		out = append(out, TLE{
			Name:  strings.TrimSpace(lines[0]),
			Line1: lines[1],
			Line2: lines[2],
		})
		lines = lines[:0]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read TLE data: %w", err)
	}
	if len(lines) != 0 {
		return nil, fmt.Errorf("truncated TLE record for %q", strings.TrimSpace(lines[0]))
	}
	return out, nil
}

// Loader fetches element groups from Celestrak with a disk cache.
type Loader struct {
	// CacheDir holds one <group>.tle file per fetched group.
	CacheDir string

	// BaseURL is the query prefix the group name is appended to. Defaults
	// to the Celestrak GP endpoint in TLE format.
	BaseURL string

	// MaxAge is how old a cached file may be before a refetch. Defaults
	// to 7 days.
	MaxAge time.Duration

	// Client defaults to http.DefaultClient.
	Client *http.Client

	Logf func(format string, v ...any)
}

func (l *Loader) logf(format string, v ...any) {
	if l.Logf != nil {
		l.Logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

func (l *Loader) maxAge() time.Duration {
	if l.MaxAge > 0 {
		return l.MaxAge
	}
	return 7 * 24 * time.Hour
}

// Group returns the element sets for one Celestrak group, from cache when
// fresh enough, fetching and rewriting the cache file otherwise.
func (l *Loader) Group(ctx context.Context, group string) ([]TLE, error) {
	if group == "" {
		return nil, fmt.Errorf("empty group name")
	}
	path := filepath.Join(l.CacheDir, group+".tle")
	if l.CacheDir != "" {
		// group names come from user input and end up in file names
		if err := security.ValidatePathWithinDirectory(path, l.CacheDir); err != nil {
			return nil, fmt.Errorf("bad group name %q: %w", group, err)
		}
	}

	if fi, err := os.Stat(path); err == nil && time.Since(fi.ModTime()) < l.maxAge() {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open cached catalog: %w", err)
		}
		defer f.Close()
		l.logf("using cached %s catalog from %v", group, fi.ModTime().Format(time.RFC3339))
		return ParseTLEs(f)
	}

	data, err := l.fetch(ctx, group)
	if err != nil {
		return nil, err
	}

	tles, err := ParseTLEs(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse %s catalog: %w", group, err)
	}

	if l.CacheDir != "" {
		if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write catalog cache: %w", err)
		}
	}
	l.logf("fetched %s catalog: %d element sets", group, len(tles))
	return tles, nil
}

func (l *Loader) fetch(ctx context.Context, group string) ([]byte, error) {
	base := l.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+url.QueryEscape(group), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s catalog: %w", group, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s catalog: unexpected status %s", group, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	return data, nil
}

// Find looks a satellite up by name across the given groups, case
// insensitively. The first match wins.
func (l *Loader) Find(ctx context.Context, name string, groups ...string) (TLE, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, group := range groups {
		tles, err := l.Group(ctx, group)
		if err != nil {
			return TLE{}, err
		}
		for _, tle := range tles {
			if strings.ToUpper(tle.Name) == want {
				return tle, nil
			}
		}
	}
	return TLE{}, fmt.Errorf("%w: %q in groups %v", ErrNotFound, name, groups)
}
