package rates

import (
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is either a Success or a Failure. Exactly one is produced per run.
type Result interface {
	OK() bool
	result()
}

// Metadata describes how the prices were derived.
type Metadata struct {
	TaxIncluded bool     `json:"tax_included"`
	GoldPurity  string   `json:"gold_purity"`
	ManualRates []string `json:"manual_rates,omitempty"`
}

// Success carries rounded INR per gram prices.
type Success struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Gold22K   float64  `json:"gold_gram_22k_inr"`
	Gold24K   float64  `json:"gold_gram_24k_inr"`
	Silver    float64  `json:"silver_gram_inr"`
	USDINR    float64  `json:"usd_inr"`
	Source    string   `json:"source"`
	Metadata  Metadata `json:"metadata"`
}

func (Success) OK() bool { return true }
func (Success) result()  {}

// Failure carries a human-readable reason.
type Failure struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (Failure) OK() bool { return false }
func (Failure) result()  {}

// NewSuccess rounds the converted prices and the exchange rate to two
// places. This is the only place rounding happens.
func NewSuccess(c Converted, usdINR float64, at time.Time, source string, conv Conversion) Success {
	return Success{
		Status:    StatusSuccess,
		Timestamp: formatTime(at),
		Gold22K:   Round2(c.Gold22K),
		Gold24K:   Round2(c.Gold24K),
		Silver:    Round2(c.Silver),
		USDINR:    Round2(usdINR),
		Source:    source,
		Metadata:  Metadata{TaxIncluded: conv.IncludeTaxes, GoldPurity: "22K"},
	}
}

// NewFailure builds an error result from err.
func NewFailure(err error, at time.Time) Failure {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Failure{Status: StatusError, Message: msg, Timestamp: formatTime(at)}
}

// Round2 rounds the shortest decimal form of v half away from zero to two
// places, so 2.675 gives 2.68 even though its binary value is just below.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Encode writes r as a single newline-terminated JSON line.
func Encode(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
