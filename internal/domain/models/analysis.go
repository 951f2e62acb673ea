package models

import "time"

// Signal buckets for a diagnosis.
const (
	SignalBuy     = "Buy"
	SignalSell    = "Sell"
	SignalNeutral = "Neutral"
)

// MainForce describes the inferred institutional-capital behaviour.
type MainForce struct {
	Inference string   `json:"inference"`
	Stage     string   `json:"stage"`
	Evidence  []string `json:"evidence"`
}

// TradingPlan is the conditional entry/exit/position advice.
type TradingPlan struct {
	Buy      string `json:"buy"`
	Sell     string `json:"sell"`
	Position string `json:"position"`
}

// Scenarios lays out the three forward paths.
type Scenarios struct {
	Optimistic  string `json:"optimistic"`
	Neutral     string `json:"neutral"`
	Pessimistic string `json:"pessimistic"`
}

// TrendJudgment is one horizon of the three-horizon trend call.
type TrendJudgment struct {
	Period      string `json:"period"`
	Trend       string `json:"trend"`
	Explanation string `json:"explanation"`
}

// StructuredAnalysis is the narrative block of a diagnosis, produced either
// by the reasoning delegate or by the local engine.
type StructuredAnalysis struct {
	ShortSummary    string          `json:"short_summary"`
	DetailedSummary string          `json:"detailed_summary"`
	Conclusion      string          `json:"conclusion"`
	TechStatus      string          `json:"tech_status"`
	MainForce       MainForce       `json:"main_force"`
	TradingPlan     TradingPlan     `json:"trading_plan"`
	Scenarios       Scenarios       `json:"scenarios"`
	TrendJudgment   []TrendJudgment `json:"trend_judgment"`
}

// IndicatorBlock carries the numeric indicators echoed with every diagnosis.
type IndicatorBlock struct {
	VolRatio      float64 `json:"vol_ratio"`
	PriceChange   float64 `json:"price_change"`
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb"`
	ROE           float64 `json:"roe"`
	EPS           float64 `json:"eps"`
	DebtRatio     float64 `json:"debt_ratio"`
	DividendYield float64 `json:"dividend_yield"`
	PSRatio       float64 `json:"ps_ratio"`
	RevenueGrowth float64 `json:"revenue_growth"`
}

// AnalysisResult is the full diagnosis response for one symbol.
type AnalysisResult struct {
	Symbol       string             `json:"symbol"`
	Advice       string             `json:"advice"`
	Signal       string             `json:"signal"`
	Intensity    int                `json:"intensity"`
	MainForce    string             `json:"main_force"`
	DetailAdvice string             `json:"detail_advice"`
	Structured   StructuredAnalysis `json:"structured_analysis"`
	Indicators   IndicatorBlock     `json:"indicators"`
}

// QuotaStatus reports the outcome of an analysis-quota check.
type QuotaStatus struct {
	Allowed  bool
	Count    int
	Limit    int
	ResumeAt time.Time
}

// User is the membership record consumed from the user store.
type User struct {
	ID        int64
	Username  string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}
