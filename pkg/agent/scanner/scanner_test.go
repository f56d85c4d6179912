package scanner_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/dealscope/pkg/agent/scanner"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGenerator struct {
	generate func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generate(ctx, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

const dealPage = `<html><body>
<div class="content-section">A great widget for everyday use.
more
Features
Stainless steel. Two year warranty.</div>
</body></html>`

func newFeedServer(t *testing.T, entries int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		var items strings.Builder
		for i := range entries {
			fmt.Fprintf(&items, `<item>
<title>Deal %d</title>
<link>%s/deal/%d</link>
<description><![CDATA[<div class="snippet summary">Save big on widget %d</div>]]></description>
</item>`, i, srv.URL, i, i)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>deals</title>%s</channel></rss>`, items.String())
	})
	mux.HandleFunc("/deal/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/broken") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, dealPage)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchDeals(t *testing.T) {
	srv := newFeedServer(t, 12)
	s := scanner.New(nil, scanner.WithFeeds(srv.URL+"/feed"), scanner.WithInterval(0))

	memory := []*model.Opportunity{
		model.NewOpportunity(model.Deal{ProductDescription: "x", Price: 1, URL: srv.URL + "/deal/3"}, 2),
	}

	deals, err := s.FetchDeals(context.Background(), memory)
	gt.NoError(t, err)
	// 10 entries per feed, one already known
	gt.A(t, deals).Length(9)

	d := deals[0]
	gt.Equal(t, d.Title, "Deal 0")
	gt.Equal(t, d.Summary, "Save big on widget 0")
	gt.Equal(t, d.URL, srv.URL+"/deal/0")
	gt.S(t, d.Details).Contains("A great widget")
	gt.S(t, d.Details).NotContains("more")
	gt.S(t, d.Features).Contains("Stainless steel")

	desc := d.Describe()
	gt.S(t, desc).Contains("Title: Deal 0\nDetails: ")
	gt.S(t, desc).Contains("\nURL: " + srv.URL + "/deal/0")
}

func TestFetchDealsSkipsBrokenFeed(t *testing.T) {
	srv := newFeedServer(t, 2)
	s := scanner.New(nil,
		scanner.WithFeeds(srv.URL+"/missing", srv.URL+"/feed"),
		scanner.WithInterval(0),
	)

	deals, err := s.FetchDeals(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, deals).Length(2)
}

func TestScanSelectsDeals(t *testing.T) {
	srv := newFeedServer(t, 6)

	var prompt string
	gen := &mockGenerator{
		generate: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			prompt = contents[0].Parts[0].Text
			gt.Equal(t, config.ResponseMIMEType, "application/json")

			var deals []string
			for i := range 6 {
				price := float64(10 * (i + 1))
				if i == 2 {
					price = 0
				}
				deals = append(deals, fmt.Sprintf(`{"product_description":"Widget %d","price":%.1f,"url":"%s/deal/%d"}`, i, price, srv.URL, i))
			}
			return textResponse(`{"deals":[` + strings.Join(deals, ",") + `]}`), nil
		},
	}

	s := scanner.New(gen, scanner.WithFeeds(srv.URL+"/feed"), scanner.WithInterval(0))
	selection, err := s.Scan(context.Background(), nil)
	gt.NoError(t, err)
	gt.NotNil(t, selection)
	gt.A(t, selection.Deals).Length(5)

	for _, d := range selection.Deals {
		gt.True(t, d.Price > 0)
	}
	gt.S(t, prompt).Contains("Title: Deal 5")
}

func TestScanNothingNew(t *testing.T) {
	srv := newFeedServer(t, 0)
	gen := &mockGenerator{
		generate: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			t.Fatal("model should not be called without deals")
			return nil, nil
		},
	}

	s := scanner.New(gen, scanner.WithFeeds(srv.URL+"/feed"))
	selection, err := s.Scan(context.Background(), nil)
	gt.NoError(t, err)
	gt.Nil(t, selection)
}

func TestScanModelError(t *testing.T) {
	srv := newFeedServer(t, 1)
	gen := &mockGenerator{
		generate: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}

	s := scanner.New(gen, scanner.WithFeeds(srv.URL+"/feed"), scanner.WithInterval(0))
	_, err := s.Scan(context.Background(), nil)
	gt.Error(t, err)
}

func TestScanInvalidJSON(t *testing.T) {
	srv := newFeedServer(t, 1)
	gen := &mockGenerator{
		generate: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("not json"), nil
		},
	}

	s := scanner.New(gen, scanner.WithFeeds(srv.URL+"/feed"), scanner.WithInterval(0))
	_, err := s.Scan(context.Background(), nil)
	gt.Error(t, err)
}
