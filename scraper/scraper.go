// Package scraper fetches anti-revoke configuration profiles from the
// upstream distribution sites.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Source describes one distribution site: the page to fetch and a
// pattern matched against anchor hrefs to find the profile download.
type Source struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	LinkPattern string `json:"link_pattern"`
}

// LoadSources reads the source list from a JSON config file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading sources config")
	}
	var sources []Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, errors.Wrapf(err, "parsing sources config %s", path)
	}
	for _, src := range sources {
		if src.Name == "" || src.URL == "" || src.LinkPattern == "" {
			return nil, errors.Errorf("source %q must set name, url and link_pattern", src.Name)
		}
	}
	return sources, nil
}

type Scraper struct {
	client  *http.Client
	logger  log.Logger
	retries int
}

func New(logger log.Logger) *Scraper {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Scraper{
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
		retries: defaultRetries,
	}
}

// Scrape fetches the profile from every source. A failing source is
// logged and omitted from the result; deciding whether a partial
// result is usable is the pipeline's call.
func (s *Scraper) Scrape(ctx context.Context, sources []Source) map[string][]byte {
	profiles := make(map[string][]byte)
	for _, src := range sources {
		data, err := s.scrapeSource(ctx, src)
		if err != nil {
			level.Warn(s.logger).Log("msg", "scraping source failed", "source", src.Name, "err", err)
			continue
		}
		s.logger.Log("msg", "scraped profile", "source", src.Name, "size", len(data))
		profiles[src.Name] = data
	}
	return profiles
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source) ([]byte, error) {
	pattern, err := regexp.Compile(src.LinkPattern)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling link pattern for %s", src.Name)
	}
	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing source url for %s", src.Name)
	}

	page, err := s.get(ctx, src.URL)
	if err != nil {
		return nil, errors.Wrap(err, "fetching source page")
	}
	link, err := findProfileLink(page, pattern, base)
	if err != nil {
		return nil, err
	}
	profile, err := s.get(ctx, link.String())
	return profile, errors.Wrap(err, "downloading profile")
}

func (s *Scraper) get(ctx context.Context, rawurl string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "GET", rawurl, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err == nil && resp.StatusCode == http.StatusOK {
				return body, nil
			}
			if err != nil {
				lastErr = err
			} else {
				lastErr = errors.Errorf("unexpected status %s", resp.Status)
			}
		}
		level.Debug(s.logger).Log(
			"msg", "fetch attempt failed",
			"url", rawurl,
			"attempt", attempt,
			"err", lastErr,
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, errors.Wrapf(lastErr, "after %d attempts", s.retries)
}

// findProfileLink walks the page's anchor elements and returns the
// first href matching the pattern, resolved against the page URL.
func findProfileLink(page []byte, pattern *regexp.Regexp, base *url.URL) (*url.URL, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, errors.Wrap(err, "parsing source page")
	}

	var link string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && pattern.MatchString(attr.Val) {
					link = attr.Val
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if !walk(doc) {
		return nil, errors.Errorf("no download link matching %q", pattern)
	}

	ref, err := url.Parse(link)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing download link %q", link)
	}
	return base.ResolveReference(ref), nil
}
