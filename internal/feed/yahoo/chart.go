package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bullionrates/internal/feed"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// Missing bars are reported as null.
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Chart fetches the bars of one symbol over period at interval.
// ErrSymbolNotFound is returned when the API knows no such symbol or
// returns no result for it.
func (c *Client) Chart(ctx context.Context, symbol, period, interval string) ([]feed.Observation, error) {
	query := url.Values{}
	query.Set("range", period)
	query.Set("interval", interval)
	query.Set("includePrePost", "false")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(symbol), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)

	default:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &APIError{StatusCode: res.StatusCode, Symbol: symbol, Message: strings.TrimSpace(string(msg))}
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}
	if e := body.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
		}
		return nil, &APIError{StatusCode: res.StatusCode, Symbol: symbol, Message: e.Code + ": " + e.Description}
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}

	return observations(symbol, body.Chart.Result[0]), nil
}

// observations pairs timestamps with closes. Bars without a close keep a
// nil Close so callers can see them and skip them.
func observations(symbol string, r chartResult) []feed.Observation {
	var closes []*float64
	if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}
	out := make([]feed.Observation, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o := feed.Observation{Symbol: symbol, Time: time.Unix(ts, 0).UTC()}
		if i < len(closes) {
			o.Close = closes[i]
		}
		out = append(out, o)
	}
	return out
}

// Download fetches every symbol and assembles a table. Symbols the API does
// not know, or whose request fails, are left out of the table; an error is
// returned only when the context ends or every symbol failed.
func (c *Client) Download(ctx context.Context, symbols []string, period, interval string) (feed.Table, error) {
	results := make([][]feed.Observation, len(symbols))
	errs := make([]error, len(symbols))

	fetch := func(i int) {
		results[i], errs[i] = c.Chart(ctx, symbols[i], period, interval)
	}

	if c.threads && len(symbols) > 1 {
		var g errgroup.Group
		for i := range symbols {
			g.Go(func() error {
				fetch(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range symbols {
			if ctx.Err() != nil {
				break
			}
			fetch(i)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := make(feed.Table, len(symbols))
	var failed []error
	for i, sym := range symbols {
		switch err := errs[i]; {
		case err == nil:
			if len(results[i]) > 0 {
				table[sym] = results[i]
			}
		case errors.Is(err, ErrSymbolNotFound):
			c.logger.Warn("symbol not available", "symbol", sym)
		default:
			c.logger.Warn("chart request failed", "symbol", sym, "error", err)
			failed = append(failed, err)
		}
	}

	if len(symbols) > 0 && len(failed) == len(symbols) {
		return nil, fmt.Errorf("download failed: %w", errors.Join(failed...))
	}
	return table, nil
}
