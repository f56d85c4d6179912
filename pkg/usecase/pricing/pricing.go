package pricing

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrNoPrice means a model reply carried no number to use as a price
var ErrNoPrice = goerr.New("no price in model reply")

// Estimator prices a product description
type Estimator interface {
	Price(ctx context.Context, description string) (float64, error)
}

// Preprocessor rewrites a raw description before pricing
type Preprocessor interface {
	Preprocess(ctx context.Context, text string) (string, error)
}

// PassThrough is a Preprocessor that returns the text unchanged
type PassThrough struct{}

func (PassThrough) Preprocess(ctx context.Context, text string) (string, error) {
	return text, nil
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// ParsePrice extracts the first number from a model reply, ignoring "$" and
// thousands separators. A reply without a number is ErrNoPrice.
func ParsePrice(reply string) (float64, error) {
	s := strings.NewReplacer("$", "", ",", "").Replace(reply)
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, goerr.Wrap(ErrNoPrice, "cannot parse price", goerr.V("reply", reply))
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, goerr.Wrap(err, "cannot parse price", goerr.V("reply", reply))
	}
	return v, nil
}
