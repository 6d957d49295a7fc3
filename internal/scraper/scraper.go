package scraper

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	KindHTML = "html"
	KindRSS  = "rss"
)

var ErrUnknownKind = errors.New("unknown site kind")

// Site is a news source. LastURL is the newest item already published.
type Site struct {
	ID       int64
	Name     string
	URL      string
	LastURL  string
	Kind     string
	Selector string
}

type Item struct {
	Title string
	URL   string
}

// Fetcher returns the raw body of a page.
type Fetcher interface {
	GetBody(ctx context.Context, source, rawURL string) ([]byte, error)
}

// Publish posts one new item.
type Publish func(ctx context.Context, site Site, item Item) error

type Scraper struct {
	repo    Repository
	fetcher Fetcher
	publish Publish
	logger  *zap.Logger
}

func New(repo Repository, fetcher Fetcher, publish Publish, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{repo: repo, fetcher: fetcher, publish: publish, logger: logger}
}

// Run checks every site once. A failing site is logged and the others still run.
func (s *Scraper) Run(ctx context.Context) error {
	sites, err := s.repo.Sites(ctx)
	if err != nil {
		return err
	}
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.runSite(ctx, site)
		if err != nil {
			s.logger.Warn("scrape_failed", zap.String("site", site.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			s.logger.Info("scrape_published", zap.String("site", site.Name), zap.Int("items", n))
		}
	}
	return nil
}

func (s *Scraper) runSite(ctx context.Context, site Site) (int, error) {
	body, err := s.fetcher.GetBody(ctx, site.Name, site.URL)
	if err != nil {
		return 0, err
	}
	items, err := Parse(site, body)
	if err != nil {
		return 0, err
	}
	fresh := NewItems(items, site.LastURL)
	published := 0
	for _, it := range fresh {
		if err := s.publish(ctx, site, it); err != nil {
			// keep last_url at the newest item actually posted
			if published > 0 {
				if uerr := s.repo.UpdateLastURL(ctx, site.ID, fresh[published-1].URL); uerr != nil {
					s.logger.Error("scrape_last_url_failed", zap.String("site", site.Name), zap.Error(uerr))
				}
			}
			return published, err
		}
		published++
	}
	if published > 0 {
		if err := s.repo.UpdateLastURL(ctx, site.ID, fresh[published-1].URL); err != nil {
			return published, err
		}
	}
	return published, nil
}

// NewItems takes items newest first and returns the ones before lastURL, oldest first.
// When lastURL is not on the page only the newest item is returned.
func NewItems(items []Item, lastURL string) []Item {
	if len(items) == 0 {
		return nil
	}
	idx := -1
	for i, it := range items {
		if it.URL == lastURL {
			idx = i
			break
		}
	}
	if idx == -1 {
		return []Item{items[0]}
	}
	out := make([]Item, 0, idx)
	for i := idx - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out
}

// Parse extracts items in page order.
func Parse(site Site, body []byte) ([]Item, error) {
	switch strings.ToLower(strings.TrimSpace(site.Kind)) {
	case KindHTML, "":
		return parseHTML(site, body)
	case KindRSS:
		return parseRSS(body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, site.Kind)
	}
}

func parseHTML(site Site, body []byte) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("site url: %w", err)
	}
	selector := strings.TrimSpace(site.Selector)
	if selector == "" {
		selector = "a"
	}

	var out []Item
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		a := sel
		if goquery.NodeName(sel) != "a" {
			a = sel.Find("a").First()
		}
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, Item{Title: strings.TrimSpace(a.Text()), URL: abs})
	})
	return out, nil
}

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseRSS(body []byte) ([]Item, error) {
	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}
	out := make([]Item, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		out = append(out, Item{Title: strings.TrimSpace(it.Title), URL: link})
	}
	return out, nil
}
