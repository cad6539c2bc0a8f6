package rates

import (
	"errors"
	"math"
	"sync"
)

// ManualSource is the source label of estimates priced from an override.
const ManualSource = "manual"

var ErrInvalidRate = errors.New("manual rate must be a finite number >= 0")

// Manual holds operator-set INR per gram rates. Gold is the 22K rate.
// Zero means no override for that metal.
type Manual struct {
	Gold   float64 `json:"gold"`
	Silver float64 `json:"silver"`
}

// Rate returns the override for metal, if any.
func (m Manual) Rate(metal Metal) (float64, bool) {
	var r float64
	switch metal {
	case Gold:
		r = m.Gold
	case Silver:
		r = m.Silver
	}
	return r, r > 0
}

// Apply replaces live rates with the overrides that are set. Gold 24K is
// derived back from the 22K override so the two stay consistent.
func (m Manual) Apply(s Success) Success {
	var used []string
	if m.Gold > 0 {
		s.Gold22K = Round2(m.Gold)
		s.Gold24K = Round2(m.Gold / Purity22K)
		used = append(used, string(Gold))
	}
	if m.Silver > 0 {
		s.Silver = Round2(m.Silver)
		used = append(used, string(Silver))
	}
	if len(used) > 0 {
		s.Source = ManualSource
		s.Metadata.ManualRates = used
	}
	return s
}

// ManualPatch updates some overrides. Nil fields are left alone and zero
// clears an override.
type ManualPatch struct {
	Gold   *float64 `json:"gold"`
	Silver *float64 `json:"silver"`
}

func validRate(p *float64) bool {
	return p == nil || (*p >= 0 && !math.IsNaN(*p) && !math.IsInf(*p, 0))
}

// Overrides is the process-wide set of manual rates. Safe for concurrent use.
type Overrides struct {
	mu sync.RWMutex
	m  Manual
}

func NewOverrides(m Manual) *Overrides { return &Overrides{m: m} }

func (o *Overrides) Get() Manual {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.m
}

// Update applies p and returns the resulting overrides.
func (o *Overrides) Update(p ManualPatch) (Manual, error) {
	if !validRate(p.Gold) || !validRate(p.Silver) {
		return Manual{}, ErrInvalidRate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if p.Gold != nil {
		o.m.Gold = *p.Gold
	}
	if p.Silver != nil {
		o.m.Silver = *p.Silver
	}
	return o.m, nil
}
