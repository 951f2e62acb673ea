package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
	xutil "StockPulse/pkg/util"
)

const (
	tencentQuoteURL = "http://qt.gtimg.cn/"
	tencentKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"
)

// Tencent serves the primary index snapshot, on-demand single quotes, the
// fallback daily bar series, and symbol lookup via the gtimg endpoints.
type Tencent struct {
	client   *xhttp.Client
	quoteURL string
	klineURL string
}

func NewTencent(client *xhttp.Client) *Tencent {
	return &Tencent{
		client:   client,
		quoteURL: tencentQuoteURL,
		klineURL: tencentKlineURL,
	}
}

func (t *Tencent) Name() string { return "tencent" }

// fetchQuoteText pulls the GBK text feed for a q= expression and returns the
// decoded body.
func (t *Tencent) fetchQuoteText(ctx context.Context, query string) (string, error) {
	var raw []byte
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         t.quoteURL,
		QueryParams: map[string][]string{"q": {query}},
	}, &raw)
	if err != nil {
		return "", err
	}
	return decodeGBK(raw)
}

// quoteParts extracts the ~-separated payload of one v_xxx="..." line.
func quoteParts(line string) []string {
	fields := strings.Split(line, `"`)
	if len(fields) < 2 || fields[1] == "" {
		return nil
	}
	return strings.Split(fields[1], "~")
}

// FetchIndexSnapshot parses the compact s_ index feed:
//
//	v_s_sh000001="1~上证指数~000001~3450.20~10.50~0.30~...";
func (t *Tencent) FetchIndexSnapshot(ctx context.Context) (models.IndexSnapshot, error) {
	text, err := t.fetchQuoteText(ctx, "s_sh000001,s_sz399001,s_sh000300")
	if err != nil {
		return nil, fmt.Errorf("tencent index feed: %w", err)
	}

	keyMap := map[string]string{
		"s_sh000001": "sse",
		"s_sz399001": "szse",
		"s_sh000300": "csi300",
	}
	snapshot := models.IndexSnapshot{}
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "=") {
			continue
		}
		keyPart, _, _ := strings.Cut(line, "=")
		key := keyPart[strings.LastIndex(keyPart, "v_")+len("v_"):]
		mapped, ok := keyMap[key]
		if !ok {
			continue
		}
		parts := quoteParts(line)
		if len(parts) < 6 {
			continue
		}
		var last, amt, pct flexFloat
		if err := parseAll(parts[3], &last, parts[4], &amt, parts[5], &pct); err != nil {
			continue
		}
		snapshot[mapped] = models.IndexQuote{
			Name:          parts[1],
			Last:          round2(float64(last)),
			ChangeAmount:  round2(float64(amt)),
			ChangePercent: round2(float64(pct)),
		}
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("tencent index feed: no parseable lines")
	}
	return snapshot, nil
}

// FetchQuote pulls the full v_ quote line for one symbol. Volume arrives in
// lots of 100 shares and turnover in units of 1e4 CNY; both are normalized.
func (t *Tencent) FetchQuote(ctx context.Context, symbol string) (models.QuoteSnapshot, error) {
	full := FullSymbol(symbol)
	text, err := t.fetchQuoteText(ctx, full)
	if err != nil {
		return models.QuoteSnapshot{}, fmt.Errorf("tencent quote feed: %w", err)
	}
	parts := quoteParts(text)
	if len(parts) < 47 || parts[1] == "" {
		return models.QuoteSnapshot{}, fmt.Errorf("tencent quote feed: no data for %s", full)
	}

	var last, prevClose, open, high, low, volume, turnover, turnoverRate, pe, pb flexFloat
	if err := parseAll(
		parts[3], &last,
		parts[4], &prevClose,
		parts[5], &open,
		parts[33], &high,
		parts[34], &low,
		parts[36], &volume,
		parts[37], &turnover,
		parts[38], &turnoverRate,
		parts[39], &pe,
		parts[46], &pb,
	); err != nil {
		return models.QuoteSnapshot{}, fmt.Errorf("tencent quote feed: %w", err)
	}

	return models.QuoteSnapshot{
		Code:         parts[2],
		Name:         parts[1],
		Last:         round2(float64(last)),
		PrevClose:    round2(float64(prevClose)),
		Open:         round2(float64(open)),
		High:         round2(float64(high)),
		Low:          round2(float64(low)),
		Volume:       float64(volume) * 100,
		Turnover:     float64(turnover) * 10000,
		TurnoverRate: round2(float64(turnoverRate)),
		PE:           round2(float64(pe)),
		PB:           round2(float64(pb)),
	}, nil
}

// LookupSymbol resolves a bare code to its listed name via the compact feed.
func (t *Tencent) LookupSymbol(ctx context.Context, code string) (models.StockEntry, error) {
	digits := xutil.Digits(code)
	full := FullSymbol(digits)
	text, err := t.fetchQuoteText(ctx, "s_"+full)
	if err != nil {
		return models.StockEntry{}, fmt.Errorf("tencent lookup feed: %w", err)
	}
	parts := quoteParts(text)
	if len(parts) < 3 || parts[1] == "" {
		return models.StockEntry{}, fmt.Errorf("tencent lookup feed: %s not listed", full)
	}
	return models.StockEntry{Code: digits, Name: parts[1]}, nil
}

// FetchDailyBars pulls forward-adjusted daily candles from the fqkline
// endpoint. Candles arrive as [date, open, close, high, low, volume] with
// volume in lots of 100 shares.
func (t *Tencent) FetchDailyBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	full := FullSymbol(symbol)
	var raw []byte
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    t.klineURL,
		QueryParams: map[string][]string{
			"param": {full + ",day,,,120,qfq"},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("tencent kline feed: %w", err)
	}

	// The endpoint may wrap the JSON in a callback; strip to the outermost
	// object before decoding.
	start := strings.IndexByte(string(raw), '{')
	end := strings.LastIndexByte(string(raw), '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("tencent kline feed: malformed body for %s", full)
	}

	var resp struct {
		Data map[string]struct {
			QfqDay [][]json.RawMessage `json:"qfqday"`
			Day    [][]json.RawMessage `json:"day"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw[start:end+1], &resp); err != nil {
		return nil, fmt.Errorf("tencent kline feed: %w", err)
	}

	series, ok := resp.Data[full]
	if !ok {
		return nil, fmt.Errorf("tencent kline feed: no data for %s", full)
	}
	candles := series.QfqDay
	if len(candles) == 0 {
		candles = series.Day
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("tencent kline feed: empty series for %s", full)
	}

	bars := make([]models.Bar, 0, len(candles))
	for _, k := range candles {
		if len(k) < 6 {
			continue
		}
		var open, close_, high, low, volume flexFloat
		if err := parseAll(
			string(k[1]), &open,
			string(k[2]), &close_,
			string(k[3]), &high,
			string(k[4]), &low,
			string(k[5]), &volume,
		); err != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   strings.Trim(string(k[0]), `"`),
			Open:   round2(float64(open)),
			High:   round2(float64(high)),
			Low:    round2(float64(low)),
			Close:  round2(float64(close_)),
			Volume: float64(volume) * 100,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("tencent kline feed: no parseable bars for %s", full)
	}
	return bars, nil
}

var (
	_ IndexProvider  = (*Tencent)(nil)
	_ QuoteProvider  = (*Tencent)(nil)
	_ LookupProvider = (*Tencent)(nil)
	_ BarProvider    = (*Tencent)(nil)
)
