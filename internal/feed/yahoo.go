package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches stock symbols like AAPL, MSFT, NFLX
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// YahooSource fetches quotes from the Yahoo Finance chart API.
type YahooSource struct {
	client  *http.Client
	baseURL string
}

// NewYahooSource creates a new Yahoo source.
func NewYahooSource() *YahooSource {
	return &YahooSource{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: yahooBaseURL,
	}
}

func (y *YahooSource) Name() string {
	return "yahoo"
}

// FetchQuote fetches the current quote for a symbol.
func (y *YahooSource) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.baseURL, symbol)

	result, err := y.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data for symbol: %s", symbol)
	}

	meta := result.Chart.Result[0].Meta

	return &core.Quote{
		Symbol: symbol,
		Price:  meta.RegularMarketPrice,
		Volume: int64(meta.RegularMarketVolume),
		Time:   time.Unix(int64(meta.RegularMarketTime), 0),
		Source: "yahoo",
	}, nil
}

// FetchCloses fetches the most recent daily closes, oldest first.
func (y *YahooSource) FetchCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	// Calendar days overshoot trading days, so fetch a wide range.
	end := time.Now()
	start := end.AddDate(0, 0, -n*2-7)
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, symbol, start.Unix(), end.Unix())

	result, err := y.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data for symbol: %s", symbol)
	}

	quotes := result.Chart.Result[0].Indicators.Quote
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no close data for symbol: %s", symbol)
	}

	closes := make([]float64, 0, len(quotes[0].Close))
	for _, c := range quotes[0].Close {
		if c == nil {
			continue // Skip missing data
		}
		closes = append(closes, *c)
	}

	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return closes, nil
}

func (y *YahooSource) get(ctx context.Context, url string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	return &result, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketVolume int     `json:"regularMarketVolume"`
	RegularMarketTime   int     `json:"regularMarketTime"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int     `json:"volume"`
}
