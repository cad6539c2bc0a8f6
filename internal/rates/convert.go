// Package rates turns gold, silver and USD/INR quotes into INR per gram
// prices and wraps the outcome of a run into a success or error result.
package rates

const (
	// TroyOunceGrams is the number of grams in one troy ounce.
	TroyOunceGrams = 31.1035
	// Purity22K is the fine-gold fraction of 22 karat gold.
	Purity22K = 0.916
)

// Conversion holds the tax settings applied on top of the unit conversion.
// It is built once at start-up and passed by value.
type Conversion struct {
	IncludeTaxes bool
	ImportDuty   float64
	GST          float64
}

// TaxFactor is the multiplier applied to converted prices. Duty and GST
// compound: (1 + duty) * (1 + gst). It is 1 when taxes are disabled.
func (c Conversion) TaxFactor() float64 {
	if !c.IncludeTaxes {
		return 1
	}
	return (1 + c.ImportDuty) * (1 + c.GST)
}

// Inputs are validated feed prices: metals in USD per troy ounce and the
// USD/INR exchange rate.
type Inputs struct {
	GoldUSDPerOz   float64
	SilverUSDPerOz float64
	USDINR         float64
}

// Converted prices in INR per gram, unrounded.
type Converted struct {
	Gold24K float64
	Gold22K float64
	Silver  float64
}

// Convert applies the ounce-to-gram and USD-to-INR conversion, the 22K
// purity factor and, when enabled, the tax factor. Nothing is rounded here.
func Convert(in Inputs, c Conversion) Converted {
	gold24 := (in.GoldUSDPerOz / TroyOunceGrams) * in.USDINR
	gold22 := gold24 * Purity22K
	silver := (in.SilverUSDPerOz / TroyOunceGrams) * in.USDINR

	if c.IncludeTaxes {
		f := c.TaxFactor()
		gold24 *= f
		gold22 *= f
		silver *= f
	}
	return Converted{Gold24K: gold24, Gold22K: gold22, Silver: silver}
}
