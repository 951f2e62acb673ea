package provider

import (
	"context"
	"fmt"
	"strings"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
	xutil "StockPulse/pkg/util"
)

const (
	eastmoneySpotURL  = "http://82.push2.eastmoney.com/api/qt/clist/get"
	eastmoneyKlineURL = "http://push2his.eastmoney.com/api/qt/stock/kline/get"
)

// EastMoney serves the primary spot quote table and the primary daily bar
// series via the push2 APIs.
type EastMoney struct {
	client   *xhttp.Client
	spotURL  string
	klineURL string
}

func NewEastMoney(client *xhttp.Client) *EastMoney {
	return &EastMoney{
		client:   client,
		spotURL:  eastmoneySpotURL,
		klineURL: eastmoneyKlineURL,
	}
}

func (e *EastMoney) Name() string { return "eastmoney" }

type emSpotRow struct {
	Last         flexFloat `json:"f2"`
	Volume       flexFloat `json:"f5"`
	Turnover     flexFloat `json:"f6"`
	TurnoverRate flexFloat `json:"f8"`
	PE           flexFloat `json:"f9"`
	Code         string    `json:"f12"`
	Name         string    `json:"f14"`
	High         flexFloat `json:"f15"`
	Low          flexFloat `json:"f16"`
	Open         flexFloat `json:"f17"`
	PrevClose    flexFloat `json:"f18"`
	PB           flexFloat `json:"f23"`
}

type emSpotResponse struct {
	Data *struct {
		Diff []emSpotRow `json:"diff"`
	} `json:"data"`
}

// FetchSpotTable pulls the whole A-share board in one page. Upstream reports
// volume in lots of 100 shares; rows are normalized to shares here.
func (e *EastMoney) FetchSpotTable(ctx context.Context) (*models.SpotTable, error) {
	var resp emSpotResponse
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    e.spotURL,
		QueryParams: map[string][]string{
			"pn":     {"1"},
			"pz":     {"6000"},
			"po":     {"1"},
			"np":     {"1"},
			"ut":     {"bd1d9ddb04089700cf9c27f6f7426281"},
			"fltt":   {"2"},
			"invt":   {"2"},
			"fid":    {"f3"},
			"fs":     {"m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23"},
			"fields": {"f2,f5,f6,f8,f9,f12,f14,f15,f16,f17,f18,f23"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("eastmoney spot feed: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Diff) == 0 {
		return nil, fmt.Errorf("eastmoney spot feed: empty data")
	}

	table := &models.SpotTable{Rows: make([]models.QuoteSnapshot, 0, len(resp.Data.Diff))}
	for _, r := range resp.Data.Diff {
		if r.Code == "" {
			continue
		}
		table.Rows = append(table.Rows, models.QuoteSnapshot{
			Code:         r.Code,
			Name:         r.Name,
			Last:         round2(float64(r.Last)),
			PrevClose:    round2(float64(r.PrevClose)),
			Open:         round2(float64(r.Open)),
			High:         round2(float64(r.High)),
			Low:          round2(float64(r.Low)),
			Volume:       float64(r.Volume) * 100,
			Turnover:     float64(r.Turnover),
			TurnoverRate: round2(float64(r.TurnoverRate)),
			PE:           round2(float64(r.PE)),
			PB:           round2(float64(r.PB)),
		})
	}
	return table, nil
}

type emKlineResponse struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// emSecID maps a bare code to the push2 secid ("1.600519" Shanghai,
// "0.000001" everything else).
func emSecID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// FetchDailyBars pulls forward-adjusted daily candles. Each kline string is
// "date,open,close,high,low,volume,turnover,...", volume in lots of 100.
func (e *EastMoney) FetchDailyBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	code := xutil.Digits(symbol)
	var resp emKlineResponse
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    e.klineURL,
		QueryParams: map[string][]string{
			"secid":   {emSecID(code)},
			"ut":      {"fa5fd1943c7b386f172d6893dbfba10b"},
			"fields1": {"f1,f2,f3,f4,f5,f6"},
			"fields2": {"f51,f52,f53,f54,f55,f56,f57"},
			"klt":     {"101"},
			"fqt":     {"1"},
			"end":     {"20500101"},
			"lmt":     {"120"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("eastmoney kline feed: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney kline feed: empty data for %s", code)
	}

	bars := make([]models.Bar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}
		var open, close_, high, low, volume flexFloat
		if err := parseAll(
			parts[1], &open,
			parts[2], &close_,
			parts[3], &high,
			parts[4], &low,
			parts[5], &volume,
		); err != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   parts[0],
			Open:   round2(float64(open)),
			High:   round2(float64(high)),
			Low:    round2(float64(low)),
			Close:  round2(float64(close_)),
			Volume: float64(volume) * 100,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("eastmoney kline feed: no parseable bars for %s", code)
	}
	return bars, nil
}

var (
	_ SpotProvider = (*EastMoney)(nil)
	_ BarProvider  = (*EastMoney)(nil)
)
