package adapter

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Pushover sends push notifications through the Pushover message API
type Pushover struct {
	user     string
	token    string
	sound    string
	endpoint string
	client   *http.Client
}

type PushoverOption func(*Pushover)

// WithPushoverEndpoint overrides the API URL
func WithPushoverEndpoint(endpoint string) PushoverOption {
	return func(p *Pushover) {
		p.endpoint = endpoint
	}
}

func WithPushoverHTTPClient(client *http.Client) PushoverOption {
	return func(p *Pushover) {
		p.client = client
	}
}

func NewPushover(user, token string, opts ...PushoverOption) *Pushover {
	p := &Pushover{
		user:     user,
		token:    token,
		sound:    "cashregister",
		endpoint: pushoverEndpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send posts message. A non-2xx status is an error.
func (p *Pushover) Send(ctx context.Context, message string) error {
	form := url.Values{
		"user":    {p.user},
		"token":   {p.token},
		"message": {message},
		"sound":   {p.sound},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerr.Wrap(err, "failed to create pushover request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send pushover request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return goerr.New("pushover returned error status",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}
	return nil
}
