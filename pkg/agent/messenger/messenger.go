package messenger

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/model"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Notifier delivers a push message to the user
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// LogNotifier writes messages to the logger instead of sending them
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, message string) error {
	logging.From(ctx).Info("notification", "message", message)
	return nil
}

const composeSystemPrompt = `You write short, exciting push notifications about shopping deals. Reply with the notification text only, 2 to 3 sentences.`

// Messenger composes and sends deal notifications
type Messenger struct {
	notifier Notifier
	llm      adapter.LLM
}

type Option func(*Messenger)

// WithLLM enables model written messages for Notify
func WithLLM(llm adapter.LLM) Option {
	return func(m *Messenger) {
		m.llm = llm
	}
}

func New(notifier Notifier, opts ...Option) *Messenger {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	m := &Messenger{notifier: notifier}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Alert sends a fixed format message for opp
func (m *Messenger) Alert(ctx context.Context, opp *model.Opportunity) error {
	text := fmt.Sprintf("Deal Alert! Price=$%.2f, Estimate=$%.2f, Discount=$%.2f : %s... %s",
		opp.Deal.Price, opp.Estimate, opp.Discount,
		shorten(opp.Deal.ProductDescription, 10), opp.Deal.URL)

	if err := m.notifier.Send(ctx, text); err != nil {
		return goerr.Wrap(err, "failed to send alert", goerr.V("url", opp.Deal.URL))
	}
	return nil
}

// Notify composes a message about a deal, with the LLM when one is
// configured, and sends it together with the url
func (m *Messenger) Notify(ctx context.Context, description string, dealPrice, estimate float64, url string) error {
	text, err := m.compose(ctx, description, dealPrice, estimate)
	if err != nil {
		return err
	}

	if err := m.notifier.Send(ctx, text+"\n"+url); err != nil {
		return goerr.Wrap(err, "failed to send notification", goerr.V("url", url))
	}
	return nil
}

func (m *Messenger) compose(ctx context.Context, description string, dealPrice, estimate float64) (string, error) {
	if m.llm == nil {
		return fmt.Sprintf("Deal Alert! $%.2f for %s (estimated value $%.2f, save $%.2f)",
			dealPrice, shorten(description, 60), estimate, estimate-dealPrice), nil
	}

	prompt := fmt.Sprintf("Please summarize this great deal in 2-3 sentences to be sent as an exciting push notification alerting the user about this deal.\nItem Description: %s\nOffered Price: %.2f\nEstimated true value: %.2f\n\nRespond only with the 2-3 sentence message which will be used to alert the user about this deal.",
		description, dealPrice, estimate)

	text, err := m.llm.Complete(ctx, composeSystemPrompt, prompt)
	if err != nil {
		return "", goerr.Wrap(err, "failed to compose notification")
	}
	return strings.TrimSpace(text), nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
