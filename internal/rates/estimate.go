package rates

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrUnknownMetal  = errors.New("unknown metal")
	ErrInvalidWeight = errors.New("weight must be a positive number of grams")
)

// Metal is a priced metal.
type Metal string

const (
	Gold   Metal = "gold"
	Silver Metal = "silver"
)

// ParseMetal accepts names containing "gold" or "silver", and the menu
// shortcuts "a" and "b".
func ParseMetal(s string) (Metal, error) {
	m := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(m, "gold") || m == "a":
		return Gold, nil
	case strings.Contains(m, "silver") || m == "b":
		return Silver, nil
	}
	return "", ErrUnknownMetal
}

// Label is the display name; gold is always quoted at 22K.
func (m Metal) Label() string {
	if m == Gold {
		return "Gold (22K)"
	}
	return "Silver"
}

// Estimate is an approximate item price for a weight of metal, before
// making charges.
type Estimate struct {
	Metal       string  `json:"metal"`
	Label       string  `json:"label"`
	Rate        float64 `json:"rate"`
	Grams       float64 `json:"grams"`
	Price       float64 `json:"price"`
	TaxIncluded bool    `json:"tax_included"`
	Source      string  `json:"source"`
	IsManual    bool    `json:"is_manual"`
}

func checkGrams(grams float64) error {
	if grams <= 0 || math.IsNaN(grams) || math.IsInf(grams, 0) {
		return ErrInvalidWeight
	}
	return nil
}

func estimate(metal Metal, rate, grams float64) Estimate {
	return Estimate{
		Metal: string(metal),
		Label: metal.Label(),
		Rate:  rate,
		Grams: grams,
		Price: Round2(rate * grams),
	}
}

// EstimatePrice prices grams of metal at the live per-gram rate in s.
func EstimatePrice(metal string, grams float64, s Success) (Estimate, error) {
	if err := checkGrams(grams); err != nil {
		return Estimate{}, err
	}
	m, err := ParseMetal(metal)
	if err != nil {
		return Estimate{}, err
	}
	rate := s.Gold22K
	if m == Silver {
		rate = s.Silver
	}
	e := estimate(m, rate, grams)
	e.TaxIncluded = s.Metadata.TaxIncluded
	e.Source = s.Source
	return e, nil
}

// EstimateManual prices grams of metal from an override. ok is false when
// no override is set for that metal and the live rate must be used.
// Overrides are final rates: no tax factor is applied.
func EstimateManual(metal string, grams float64, m Manual) (e Estimate, ok bool, err error) {
	if err := checkGrams(grams); err != nil {
		return Estimate{}, false, err
	}
	kind, err := ParseMetal(metal)
	if err != nil {
		return Estimate{}, false, err
	}
	rate, ok := m.Rate(kind)
	if !ok {
		return Estimate{}, false, nil
	}
	e = estimate(kind, rate, grams)
	e.Source = ManualSource
	e.IsManual = true
	return e, true, nil
}
