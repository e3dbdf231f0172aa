package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// SelectorConfig is the per-source CSS selector configuration the generic
// article extractor is driven by, covering the WordPress/CMS-style medical
// news sites that make up most of PreventIA's source list.
type SelectorConfig struct {
	Domain string `json:"domain,omitempty"`

	ListingItem  string `json:"listing_item,omitempty"`  // selector matching one listing entry (e.g. "article.post")
	ListingLink  string `json:"listing_link,omitempty"`  // selector (relative to ListingItem) for the <a> to follow
	ListingTitle string `json:"listing_title,omitempty"` // optional selector for a listing-page title

	ArticleTitle     string `json:"article_title,omitempty"`
	ArticleSummary   string `json:"article_summary,omitempty"` // falls back to the first N chars of ArticleBody
	ArticleBody      string `json:"article_body,omitempty"`
	ArticleAuthor    string `json:"article_author,omitempty"`
	ArticlePublished string `json:"article_published,omitempty"` // selector for a <time datetime="..."> or similar
	ArticleLanguage  string `json:"article_language,omitempty"`  // ISO 639-1 default if the page carries no lang attribute
}

// GenericArticleExtractor extracts listing/article pages using a per-source
// CSS selector configuration, via goquery (grounded on the pack's HTML
// scraping stack rather than a hand-rolled tokenizer).
type GenericArticleExtractor struct {
	cfg      SelectorConfig
	keywords []string
}

// NewGenericArticleExtractor builds an extractor for one source's selector
// configuration. keywords overrides DefaultMedicalKeywords when non-empty.
func NewGenericArticleExtractor(cfg SelectorConfig, keywords []string) *GenericArticleExtractor {
	if len(keywords) == 0 {
		keywords = DefaultMedicalKeywords
	}
	return &GenericArticleExtractor{cfg: cfg, keywords: keywords}
}

// CanHandle reports whether url's host matches the configured domain.
func (g *GenericArticleExtractor) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), g.cfg.Domain) || strings.HasSuffix(strings.ToLower(u.Hostname()), "."+strings.ToLower(g.cfg.Domain))
}

// ListArticles fetches listingURL and extracts up to max candidate links.
func (g *GenericArticleExtractor) ListArticles(ctx context.Context, f Fetcher, listingURL string, max int) ([]CandidateLink, error) {
	body, err := f.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", listingURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", listingURL, err)
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing base url: %w", err)
	}

	var links []CandidateLink
	doc.Find(g.cfg.ListingItem).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if max > 0 && len(links) >= max {
			return false
		}

		linkSel := item
		if g.cfg.ListingLink != "" {
			linkSel = item.Find(g.cfg.ListingLink).First()
		}
		href, ok := linkSel.Attr("href")
		if !ok || href == "" {
			return true
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return true
		}

		title := strings.TrimSpace(linkSel.Text())
		if g.cfg.ListingTitle != "" {
			if t := strings.TrimSpace(item.Find(g.cfg.ListingTitle).First().Text()); t != "" {
				title = t
			}
		}

		links = append(links, CandidateLink{URL: resolved.String(), Title: title})
		return true
	})

	return links, nil
}

// FetchArticle fetches and parses one article page.
func (g *GenericArticleExtractor) FetchArticle(ctx context.Context, f Fetcher, link CandidateLink) (*ArticleRecord, *Failure) {
	body, err := f.Fetch(ctx, link.URL)
	if err != nil {
		return nil, ClassifyFetchError(err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Kind: FailureSelectorNotFound, Detail: "malformed HTML: " + err.Error()}
	}

	title := strings.TrimSpace(doc.Find(g.cfg.ArticleTitle).First().Text())
	if title == "" {
		title = link.Title
	}
	if len(title) < 10 {
		return nil, &Failure{Kind: FailureSelectorNotFound, Detail: "article title selector produced no usable title"}
	}

	bodyText := strings.TrimSpace(doc.Find(g.cfg.ArticleBody).Text())
	if bodyText == "" {
		return nil, &Failure{Kind: FailureSelectorNotFound, Detail: "article body selector matched nothing"}
	}

	if !HasMedicalKeyword(title+" "+bodyText, g.keywords) {
		return nil, &Failure{Kind: FailureNonMedical, Detail: "no configured medical keyword matched"}
	}

	summary := bodyText
	if g.cfg.ArticleSummary != "" {
		if s := strings.TrimSpace(doc.Find(g.cfg.ArticleSummary).First().Text()); s != "" {
			summary = s
		}
	}
	if len(summary) > 2000 {
		summary = summary[:2000]
	}

	var author string
	if g.cfg.ArticleAuthor != "" {
		author = strings.TrimSpace(doc.Find(g.cfg.ArticleAuthor).First().Text())
	}

	published := time.Now().UTC()
	if g.cfg.ArticlePublished != "" {
		sel := doc.Find(g.cfg.ArticlePublished).First()
		if dt, ok := sel.Attr("datetime"); ok && dt != "" {
			if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
				published = parsed
			}
		}
	}

	language := g.cfg.ArticleLanguage
	if language == "" {
		if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
			language = lang
		} else {
			language = "en"
		}
	}

	return &ArticleRecord{
		URL:         link.URL,
		Title:       title,
		Summary:     summary,
		Content:     bodyText,
		PublishedAt: published,
		Author:      author,
		Language:    language,
		ContentHash: ContentHash(title, bodyText),
		WordCount:   WordCount(bodyText),
	}, nil
}
