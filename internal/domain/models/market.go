package models

// Wire field names below are part of the public API contract consumed by the
// existing frontend and must not be renamed.

// StockEntry is one row of the exchange-wide stock list.
type StockEntry struct {
	Code string `json:"代码"`
	Name string `json:"名称"`
}

// QuoteSnapshot is the canonical real-time quote for one symbol. Volume is in
// shares and turnover in yuan regardless of the upstream's native units.
type QuoteSnapshot struct {
	Code         string  `json:"代码"`
	Name         string  `json:"名称"`
	Last         float64 `json:"最新价"`
	PrevClose    float64 `json:"昨收"`
	Open         float64 `json:"开盘"`
	High         float64 `json:"最高"`
	Low          float64 `json:"最低"`
	Volume       float64 `json:"成交量"`
	Turnover     float64 `json:"成交额"`
	TurnoverRate float64 `json:"换手率"`
	PE           float64 `json:"市盈率"`
	PB           float64 `json:"市净率"`
}

// Bar is one daily OHLCV bar. Volume is in shares. Series are ordered
// ascending by date.
type Bar struct {
	Date   string  `json:"日期"`
	Open   float64 `json:"开盘"`
	High   float64 `json:"最高"`
	Low    float64 `json:"最低"`
	Close  float64 `json:"收盘"`
	Volume float64 `json:"成交量"`
}

// IndexQuote is the snapshot of one benchmark index.
type IndexQuote struct {
	Name          string  `json:"名称"`
	Last          float64 `json:"最新价"`
	ChangeAmount  float64 `json:"涨跌额"`
	ChangePercent float64 `json:"涨跌幅"`
}

// IndexSnapshot maps index key (sse, szse, csi300) to its quote.
type IndexSnapshot map[string]IndexQuote

// RankEntry is one row of the gainer/loser rankings.
type RankEntry struct {
	Code          string  `json:"代码"`
	Name          string  `json:"名称"`
	Last          float64 `json:"最新价"`
	ChangePercent float64 `json:"涨跌幅"`
}

// Rankings holds the top movers in both directions.
type Rankings struct {
	Gainers []RankEntry `json:"gainers"`
	Losers  []RankEntry `json:"losers"`
}

// SpotTable is the full-market quote table keyed for symbol lookup.
type SpotTable struct {
	Rows []QuoteSnapshot
}

// FindByCode returns the quote row for code, if present.
func (t *SpotTable) FindByCode(code string) (QuoteSnapshot, bool) {
	if t == nil {
		return QuoteSnapshot{}, false
	}
	for _, r := range t.Rows {
		if r.Code == code {
			return r, true
		}
	}
	return QuoteSnapshot{}, false
}

// Entries projects the table onto the stock-list schema. Used when the list
// dataset has not loaded yet.
func (t *SpotTable) Entries() []StockEntry {
	if t == nil {
		return nil
	}
	out := make([]StockEntry, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, StockEntry{Code: r.Code, Name: r.Name})
	}
	return out
}
