package scanner

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mmcdole/gofeed"
)

const (
	maxTitleLength    = 100
	maxDetailsLength  = 500
	maxFeaturesLength = 500
)

// ScrapedDeal is one feed entry together with the text of its deal page
type ScrapedDeal struct {
	Title    string
	Summary  string
	URL      string
	Details  string
	Features string
}

// Describe formats the deal for a model prompt
func (d *ScrapedDeal) Describe() string {
	return fmt.Sprintf("Title: %s\nDetails: %s\nFeatures: %s\nURL: %s",
		d.Title, strings.TrimSpace(d.Details), strings.TrimSpace(d.Features), d.URL)
}

func (d *ScrapedDeal) String() string {
	return "<" + d.Title + ">"
}

func (d *ScrapedDeal) truncate() {
	d.Title = truncate(d.Title, maxTitleLength)
	d.Details = truncate(d.Details, maxDetailsLength)
	d.Features = truncate(d.Features, maxFeaturesLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// extractSnippet returns the plain text of the "snippet summary" block in a
// feed entry description, or the description itself when there is none
func extractSnippet(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.ReplaceAll(html, "\n", " ")
	}

	text := html
	if sel := doc.Find("div.snippet.summary"); sel.Length() > 0 {
		text = strings.TrimSpace(sel.First().Text())
	}
	return strings.ReplaceAll(text, "\n", " ")
}

// parseDealPage splits the content section of a deal page into details and
// features
func parseDealPage(doc *goquery.Document) (details, features string, err error) {
	sel := doc.Find("div.content-section")
	if sel.Length() == 0 {
		return "", "", goerr.New("content section not found in deal page")
	}

	content := sel.First().Text()
	content = strings.ReplaceAll(content, "\nmore", "")
	content = strings.ReplaceAll(content, "\n", " ")

	if before, after, found := strings.Cut(content, "Features"); found {
		return before, after, nil
	}
	return content, "", nil
}

func (s *Scanner) scrape(ctx context.Context, item *gofeed.Item) (*ScrapedDeal, error) {
	deal := &ScrapedDeal{
		Title:   item.Title,
		Summary: extractSnippet(item.Description),
		URL:     item.Link,
	}
	if deal.URL == "" && len(item.Links) > 0 {
		deal.URL = item.Links[0]
	}
	if deal.URL == "" {
		return nil, goerr.New("feed entry has no link", goerr.V("title", item.Title))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deal.URL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", deal.URL))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch deal page", goerr.V("url", deal.URL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("deal page returned error",
			goerr.V("url", deal.URL), goerr.V("status", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse deal page", goerr.V("url", deal.URL))
	}

	details, features, err := parseDealPage(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read deal page", goerr.V("url", deal.URL))
	}
	deal.Details = details
	deal.Features = features
	deal.truncate()

	return deal, nil
}
