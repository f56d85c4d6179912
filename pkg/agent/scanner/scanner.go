// Package scanner reads deal RSS feeds and asks a model to pick the deals
// worth pricing.
package scanner

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"text/template"
	"time"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mmcdole/gofeed"
	"google.golang.org/genai"
)

//go:embed prompt/select.md
var selectPromptRaw string

var selectPromptTmpl = template.Must(template.New("select").Parse(selectPromptRaw))

// DefaultFeeds are the dealnews category feeds scanned when none are configured
var DefaultFeeds = []string{
	"https://www.dealnews.com/c142/Electronics/?rss=1",
	"https://www.dealnews.com/c39/Computers/?rss=1",
	"https://www.dealnews.com/f1912/Smart-Home/?rss=1",
}

const (
	DefaultEntriesPerFeed = 10
	DefaultSelectCount    = 5
)

// Generator is the part of the Gemini client the scanner needs
type Generator interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Scanner struct {
	gemini         Generator
	client         *http.Client
	feeds          []string
	entriesPerFeed int
	selectCount    int
	interval       time.Duration
}

type Option func(*Scanner)

func WithFeeds(feeds ...string) Option {
	return func(s *Scanner) {
		s.feeds = feeds
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Scanner) {
		s.client = client
	}
}

func WithEntriesPerFeed(n int) Option {
	return func(s *Scanner) {
		s.entriesPerFeed = n
	}
}

// WithInterval sets the pause between deal page fetches
func WithInterval(d time.Duration) Option {
	return func(s *Scanner) {
		s.interval = d
	}
}

func New(gemini Generator, opts ...Option) *Scanner {
	s := &Scanner{
		gemini:         gemini,
		client:         &http.Client{Timeout: 30 * time.Second},
		feeds:          DefaultFeeds,
		entriesPerFeed: DefaultEntriesPerFeed,
		selectCount:    DefaultSelectCount,
		interval:       50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchDeals reads every feed and scrapes the linked deal pages. Entries whose
// url is already in memory are skipped. A broken feed or page is logged and
// skipped.
func (s *Scanner) FetchDeals(ctx context.Context, memory []*model.Opportunity) ([]*ScrapedDeal, error) {
	logger := logging.From(ctx)

	seen := make(map[string]struct{}, len(memory))
	for _, opp := range memory {
		seen[opp.Deal.URL] = struct{}{}
	}

	parser := gofeed.NewParser()
	parser.Client = s.client

	var deals []*ScrapedDeal
	for _, feedURL := range s.feeds {
		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, goerr.Wrap(ctx.Err(), "scan interrupted")
			}
			logger.Warn("failed to read feed", "url", feedURL, "error", err)
			continue
		}

		items := feed.Items
		if len(items) > s.entriesPerFeed {
			items = items[:s.entriesPerFeed]
		}

		for _, item := range items {
			if _, ok := seen[item.Link]; ok && item.Link != "" {
				continue
			}

			deal, err := s.scrape(ctx, item)
			if err != nil {
				logger.Warn("failed to scrape deal", "title", item.Title, "error", err)
				continue
			}
			if _, ok := seen[deal.URL]; ok {
				continue
			}
			seen[deal.URL] = struct{}{}
			deals = append(deals, deal)

			if s.interval > 0 {
				select {
				case <-ctx.Done():
					return nil, goerr.Wrap(ctx.Err(), "scan interrupted")
				case <-time.After(s.interval):
				}
			}
		}
	}

	logger.Info("fetched deals", "count", len(deals), "feeds", len(s.feeds))
	return deals, nil
}

// Scan fetches new deals and returns the ones the model selected as having
// clear prices and good descriptions. It returns nil when there is nothing new.
func (s *Scanner) Scan(ctx context.Context, memory []*model.Opportunity) (*model.DealSelection, error) {
	scraped, err := s.FetchDeals(ctx, memory)
	if err != nil {
		return nil, err
	}
	if len(scraped) == 0 {
		return nil, nil
	}

	selection, err := s.selectDeals(ctx, scraped)
	if err != nil {
		return nil, err
	}
	if len(selection.Deals) == 0 {
		return nil, nil
	}
	return selection, nil
}

func (s *Scanner) selectDeals(ctx context.Context, scraped []*ScrapedDeal) (*model.DealSelection, error) {
	var buf bytes.Buffer
	if err := selectPromptTmpl.Execute(&buf, map[string]any{
		"Limit": s.selectCount,
		"Deals": scraped,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute select prompt template")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"deals": {
					Type:        genai.TypeArray,
					Description: "Selected deals with clear prices",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"product_description": {
								Type:        genai.TypeString,
								Description: "Summary of the product itself in 3 to 4 sentences",
							},
							"price": {
								Type:        genai.TypeNumber,
								Description: "Actual price of the item in dollars",
							},
							"url": {
								Type:        genai.TypeString,
								Description: "URL of the deal as provided",
							},
						},
						Required: []string{"product_description", "price", "url"},
					},
				},
			},
			Required: []string{"deals"},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select deals")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var selection model.DealSelection
	if err := json.Unmarshal([]byte(rawJSON), &selection); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal deal selection", goerr.V("json", rawJSON))
	}

	logger := logging.From(ctx)
	result := &model.DealSelection{}
	for _, deal := range selection.Deals {
		if deal == nil {
			continue
		}
		if err := deal.Validate(); err != nil {
			logger.Debug("dropping selected deal", "url", deal.URL, "error", err)
			continue
		}
		result.Deals = append(result.Deals, deal)
		if len(result.Deals) >= s.selectCount {
			break
		}
	}

	logger.Info("selected deals", "count", len(result.Deals))
	return result, nil
}
