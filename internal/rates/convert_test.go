package rates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bullionrates/internal/rates"
)

var taxes = rates.Conversion{IncludeTaxes: true, ImportDuty: 0.155, GST: 0.03}

func TestConvert_UntaxedMatchesFormula(t *testing.T) {
	t.Parallel()

	triples := []rates.Inputs{
		{GoldUSDPerOz: 2000, SilverUSDPerOz: 25, USDINR: 83},
		{GoldUSDPerOz: 2650.4, SilverUSDPerOz: 31.27, USDINR: 84.12},
		{GoldUSDPerOz: 1.5, SilverUSDPerOz: 0.01, USDINR: 0.5},
		{GoldUSDPerOz: 3999.99, SilverUSDPerOz: 49.999, USDINR: 90.0001},
	}
	for _, in := range triples {
		got := rates.Convert(in, rates.Conversion{})

		// Assert: exact to the formula, no intermediate rounding.
		gold24 := (in.GoldUSDPerOz / 31.1035) * in.USDINR
		require.Equal(t, gold24, got.Gold24K)
		require.Equal(t, gold24*0.916, got.Gold22K)
		require.Equal(t, (in.SilverUSDPerOz/31.1035)*in.USDINR, got.Silver)
	}
}

func TestConvert_TaxFactorIsMultiplicative(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.18965, taxes.TaxFactor(), 1e-12)
	require.Equal(t, 1.0, rates.Conversion{ImportDuty: 0.155, GST: 0.03}.TaxFactor())

	triples := []rates.Inputs{
		{GoldUSDPerOz: 2000, SilverUSDPerOz: 25, USDINR: 83},
		{GoldUSDPerOz: 2650.4, SilverUSDPerOz: 31.27, USDINR: 84.12},
		{GoldUSDPerOz: 1800.25, SilverUSDPerOz: 22.5, USDINR: 81.7},
	}
	for _, in := range triples {
		plain := rates.Convert(in, rates.Conversion{})
		taxed := rates.Convert(in, taxes)

		require.InDelta(t, rates.Round2(plain.Gold22K*1.18965), rates.Round2(taxed.Gold22K), 0.01)
		require.InDelta(t, rates.Round2(plain.Silver*1.18965), rates.Round2(taxed.Silver), 0.01)
		require.InDelta(t, rates.Round2(plain.Gold24K*1.18965), rates.Round2(taxed.Gold24K), 0.01)
	}
}

func TestConvert_WorkedExamples(t *testing.T) {
	t.Parallel()

	in := rates.Inputs{GoldUSDPerOz: 2000, SilverUSDPerOz: 25, USDINR: 83}

	plain := rates.Convert(in, rates.Conversion{})
	require.Equal(t, 5337.02, rates.Round2(plain.Gold24K))
	require.Equal(t, 4888.71, rates.Round2(plain.Gold22K))
	require.Equal(t, 66.71, rates.Round2(plain.Silver))

	taxed := rates.Convert(in, taxes)
	require.Equal(t, 5815.85, rates.Round2(taxed.Gold22K))
	require.Equal(t, 79.36, rates.Round2(taxed.Silver))
}

func TestNewSuccess_RoundsOnceAtOutput(t *testing.T) {
	t.Parallel()

	in := rates.Inputs{GoldUSDPerOz: 2650.4, SilverUSDPerOz: 31.27, USDINR: 84.1234}
	out := rates.Convert(in, taxes)
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	s := rates.NewSuccess(out, in.USDINR, at, "Yahoo Finance", taxes)

	// Assert: each field is the raw value rounded exactly once.
	raw22 := (in.GoldUSDPerOz / 31.1035) * in.USDINR * 0.916 * 1.155 * 1.03
	require.InDelta(t, rates.Round2(raw22), s.Gold22K, 1e-9)
	require.Equal(t, rates.Round2(out.Silver), s.Silver)
	require.Equal(t, 84.12, s.USDINR)
	require.Equal(t, "2025-03-04T05:06:07Z", s.Timestamp)
	require.True(t, s.Metadata.TaxIncluded)
	require.Equal(t, "22K", s.Metadata.GoldPurity)
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.01, rates.Round2(1.005))
	require.Equal(t, 2.68, rates.Round2(2.675))
	require.Equal(t, -1.01, rates.Round2(-1.005))
	require.Equal(t, 4888.71, rates.Round2(4888.710273763402))
}
