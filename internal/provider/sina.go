package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
)

const (
	sinaNodeURL  = "http://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeData"
	sinaIndexURL = "http://hq.sinajs.cn/list=s_sh000001,s_sz399001,s_sh000300"
	sinaReferer  = "http://finance.sina.com.cn"
	sinaUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Sina serves the comprehensive stock list, the change-percent rankings, a
// secondary spot table, and the index snapshot fallback.
type Sina struct {
	client   *xhttp.Client
	nodeURL  string
	indexURL string
}

func NewSina(client *xhttp.Client) *Sina {
	return &Sina{
		client:   client,
		nodeURL:  sinaNodeURL,
		indexURL: sinaIndexURL,
	}
}

func (s *Sina) Name() string { return "sina" }

// sinaRow is one row of the Market_Center node feed.
type sinaRow struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Trade         flexFloat `json:"trade"`
	Settlement    flexFloat `json:"settlement"`
	Open          flexFloat `json:"open"`
	High          flexFloat `json:"high"`
	Low           flexFloat `json:"low"`
	Volume        flexFloat `json:"volume"`
	Amount        flexFloat `json:"amount"`
	ChangePercent flexFloat `json:"changepercent"`
	TurnoverRatio flexFloat `json:"turnoverratio"`
	PER           flexFloat `json:"per"`
	PB            flexFloat `json:"pb"`
}

func (s *Sina) fetchNode(ctx context.Context, params map[string][]string) ([]sinaRow, error) {
	var rows []sinaRow
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.nodeURL,
		Headers: map[string]string{
			"Referer":    sinaReferer,
			"User-Agent": sinaUA,
		},
		QueryParams: params,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("sina node feed: %w", err)
	}
	return rows, nil
}

// FetchStockList pulls the full hs_a node, code and name only.
func (s *Sina) FetchStockList(ctx context.Context) ([]models.StockEntry, error) {
	rows, err := s.fetchNode(ctx, map[string][]string{
		"page":   {"1"},
		"num":    {"6000"},
		"sort":   {"symbol"},
		"asc":    {"1"},
		"node":   {"hs_a"},
		"symbol": {""},
		"_s_r_a": {"init"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.StockEntry, 0, len(rows))
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		out = append(out, models.StockEntry{Code: r.Code, Name: r.Name})
	}
	return out, nil
}

// FetchSpotTable pulls the full node feed as a quote table. Sina reports
// volume in shares already; no unit conversion applies.
func (s *Sina) FetchSpotTable(ctx context.Context) (*models.SpotTable, error) {
	rows, err := s.fetchNode(ctx, map[string][]string{
		"page":   {"1"},
		"num":    {"6000"},
		"sort":   {"symbol"},
		"asc":    {"1"},
		"node":   {"hs_a"},
		"symbol": {""},
		"_s_r_a": {"init"},
	})
	if err != nil {
		return nil, err
	}
	table := &models.SpotTable{Rows: make([]models.QuoteSnapshot, 0, len(rows))}
	for _, r := range rows {
		if r.Code == "" {
			continue
		}
		table.Rows = append(table.Rows, models.QuoteSnapshot{
			Code:         r.Code,
			Name:         r.Name,
			Last:         round2(float64(r.Trade)),
			PrevClose:    round2(float64(r.Settlement)),
			Open:         round2(float64(r.Open)),
			High:         round2(float64(r.High)),
			Low:          round2(float64(r.Low)),
			Volume:       float64(r.Volume),
			Turnover:     float64(r.Amount),
			TurnoverRate: round2(float64(r.TurnoverRatio)),
			PE:           round2(float64(r.PER)),
			PB:           round2(float64(r.PB)),
		})
	}
	return table, nil
}

// FetchRankings pulls top-10 gainers and losers sorted by change percent.
func (s *Sina) FetchRankings(ctx context.Context) (models.Rankings, error) {
	fetch := func(asc string) ([]models.RankEntry, error) {
		rows, err := s.fetchNode(ctx, map[string][]string{
			"page":   {"1"},
			"num":    {"10"},
			"sort":   {"changepercent"},
			"asc":    {asc},
			"node":   {"hs_a"},
			"symbol": {""},
			"_s_r_a": {"init"},
		})
		if err != nil {
			return nil, err
		}
		out := make([]models.RankEntry, 0, len(rows))
		for _, r := range rows {
			out = append(out, models.RankEntry{
				Code:          r.Code,
				Name:          r.Name,
				Last:          round2(float64(r.Trade)),
				ChangePercent: round2(float64(r.ChangePercent)),
			})
		}
		return out, nil
	}

	gainers, err := fetch("0")
	if err != nil {
		return models.Rankings{}, err
	}
	losers, err := fetch("1")
	if err != nil {
		return models.Rankings{}, err
	}
	return models.Rankings{Gainers: gainers, Losers: losers}, nil
}

// FetchIndexSnapshot parses the GBK hq feed:
//
//	var hq_str_s_sh000001="上证指数,3450.20,10.50,0.30,...";
func (s *Sina) FetchIndexSnapshot(ctx context.Context) (models.IndexSnapshot, error) {
	var raw []byte
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.indexURL,
		Headers: map[string]string{
			"Referer":    sinaReferer,
			"User-Agent": sinaUA,
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("sina index feed: %w", err)
	}

	text, err := decodeGBK(raw)
	if err != nil {
		return nil, fmt.Errorf("sina index decode: %w", err)
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
		key := keyPart[strings.LastIndex(keyPart, "hq_str_")+len("hq_str_"):]
		mapped, ok := keyMap[key]
		if !ok {
			continue
		}
		fields := strings.Split(line, `"`)
		if len(fields) < 2 {
			continue
		}
		parts := strings.Split(fields[1], ",")
		if len(parts) < 4 {
			continue
		}
		var last, amt, pct flexFloat
		if err := parseAll(parts[1], &last, parts[2], &amt, parts[3], &pct); err != nil {
			continue
		}
		snapshot[mapped] = models.IndexQuote{
			Name:          parts[0],
			Last:          round2(float64(last)),
			ChangeAmount:  round2(float64(amt)),
			ChangePercent: round2(float64(pct)),
		}
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("sina index feed: no parseable lines")
	}
	return snapshot, nil
}

// LookupSymbol is not served by Sina; see Tencent.

func decodeGBK(b []byte) (string, error) {
	r := transform.NewReader(bytes.NewReader(b), simplifiedchinese.GBK.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseAll unmarshals alternating raw/dest pairs through flexFloat.
func parseAll(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		raw, _ := pairs[i].(string)
		dest, _ := pairs[i+1].(*flexFloat)
		if dest == nil {
			continue
		}
		if err := dest.UnmarshalJSON([]byte(raw)); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ StockListProvider = (*Sina)(nil)
	_ SpotProvider      = (*Sina)(nil)
	_ RankingsProvider  = (*Sina)(nil)
	_ IndexProvider     = (*Sina)(nil)
)
