package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultHFEndpoint = "https://datasets-server.huggingface.co"
	DefaultHFUser     = "ed-donner"
	HFLiteDataset     = "items_lite"
	HFFullDataset     = "items_full"

	hfPageSize = 100
)

// HFDatasetName returns "{user}/items_lite", or items_full when full is set
func HFDatasetName(user string, full bool) string {
	if user == "" {
		user = DefaultHFUser
	}
	if full {
		return user + "/" + HFFullDataset
	}
	return user + "/" + HFLiteDataset
}

// HuggingFace reads rows through the datasets-server rows API
type HuggingFace struct {
	endpoint string
	dataset  string
	config   string
	token    string
	client   *http.Client
}

type HFOption func(*HuggingFace)

func WithHFEndpoint(endpoint string) HFOption {
	return func(h *HuggingFace) {
		h.endpoint = endpoint
	}
}

// WithHFToken sends token as a bearer token, required for private datasets
func WithHFToken(token string) HFOption {
	return func(h *HuggingFace) {
		h.token = token
	}
}

func WithHFHTTPClient(client *http.Client) HFOption {
	return func(h *HuggingFace) {
		h.client = client
	}
}

func NewHuggingFace(dataset string, opts ...HFOption) *HuggingFace {
	h := &HuggingFace{
		endpoint: DefaultHFEndpoint,
		dataset:  dataset,
		config:   "default",
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type hfRowsResponse struct {
	Rows []struct {
		RowIdx int        `json:"row_idx"`
		Row    model.Item `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func (h *HuggingFace) Load(ctx context.Context, split Split, limit int) ([]*model.Item, error) {
	var items []*model.Item
	origin := h.dataset + ":" + string(split)

	for offset := 0; ; {
		length := hfPageSize
		if limit > 0 && limit-len(items) < length {
			length = limit - len(items)
		}

		page, err := h.fetchRows(ctx, split, offset, length)
		if err != nil {
			return nil, err
		}

		for i := range page.Rows {
			item := page.Rows[i].Row
			items = accept(ctx, items, &item, origin)
		}

		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal || full(items, limit) {
			break
		}
	}

	return items, nil
}

func (h *HuggingFace) fetchRows(ctx context.Context, split Split, offset, length int) (*hfRowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", h.dataset)
	q.Set("config", h.config)
	q.Set("split", string(split))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))
	reqURL := fmt.Sprintf("%s/rows?%s", h.endpoint, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("dataset", h.dataset))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("datasets server returned error",
			goerr.V("dataset", h.dataset),
			goerr.V("split", split),
			goerr.V("offset", offset),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var page hfRowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, goerr.Wrap(err, "failed to decode rows", goerr.V("dataset", h.dataset))
	}
	return &page, nil
}
