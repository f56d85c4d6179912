package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// PriceQuestion is the instruction line placed at the top of a training prompt
	PriceQuestion = "What does this cost to the nearest dollar?"
	// PricePrefix precedes the answer in a training prompt
	PricePrefix = "Price is $"
)

// Item is a catalogue record loaded from a bulk dataset
type Item struct {
	Title    string   `json:"title" bigquery:"title"`
	Category string   `json:"category" bigquery:"category"`
	Price    float64  `json:"price" bigquery:"price"`
	Full     *string  `json:"full,omitempty" bigquery:"full"`
	Weight   *float64 `json:"weight,omitempty" bigquery:"weight"`
	Summary  *string  `json:"summary,omitempty" bigquery:"summary"`
	Prompt   *string  `json:"prompt,omitempty" bigquery:"prompt"`
	ID       *int64   `json:"id,omitempty" bigquery:"id"`
}

// Validate checks the fields every ingested item must carry
func (x *Item) Validate() error {
	if x.Title == "" {
		return goerr.New("item title is empty")
	}
	if x.Price < 0 || math.IsNaN(x.Price) {
		return goerr.New("item price must be non-negative", goerr.V("title", x.Title), goerr.V("price", x.Price))
	}
	return nil
}

// Text returns the text that represents the item in the vector store.
// Summary wins over full text; with neither, "{title} ({category})" is synthesized.
func (x *Item) Text() string {
	if x.Summary != nil && *x.Summary != "" {
		return *x.Summary
	}
	if x.Full != nil && *x.Full != "" {
		return *x.Full
	}
	return fmt.Sprintf("%s (%s)", x.Title, x.Category)
}

// MakePrompt derives the training prompt from text and the item's price.
// It is set once; later calls are ignored.
func (x *Item) MakePrompt(text string) {
	if x.Prompt != nil {
		return
	}
	prompt := fmt.Sprintf("%s\n\n%s\n\n%s%d.00", PriceQuestion, text, PricePrefix, int64(math.RoundToEven(x.Price)))
	x.Prompt = &prompt
}

// TestPrompt returns the prompt with the answer removed
func (x *Item) TestPrompt() string {
	if x.Prompt == nil {
		return ""
	}
	head, _, _ := strings.Cut(*x.Prompt, PricePrefix)
	return head + PricePrefix
}

func (x *Item) String() string {
	return fmt.Sprintf("<%s = $%.2f>", x.Title, x.Price)
}
