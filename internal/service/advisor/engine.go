package advisor

import (
	"context"
	"errors"
	"math"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/service/indicator"
	xlogger "StockPulse/pkg/logger"
)

// Ratios are the per-symbol fundamentals derived from the live quote.
// Non-positive PE/PB from upstream are coerced to the market-typical 20/2
// before derivation.
type Ratios struct {
	Price     float64
	PrevClose float64
	PE        float64
	PB        float64
	ROE       float64
	EPS       float64
	DebtRatio float64

	// QuoteChange is the percent change computed from the quote itself,
	// used when no bar history exists.
	QuoteChange float64
}

// DeriveRatios computes estimated fundamentals from a quote snapshot. A nil
// quote yields the coerced defaults.
func DeriveRatios(q *models.QuoteSnapshot) Ratios {
	r := Ratios{PE: 20.0, PB: 2.0, DebtRatio: 45.0}
	if q != nil {
		if q.PE > 0 {
			r.PE = q.PE
		}
		if q.PB > 0 {
			r.PB = q.PB
		}
		r.Price = q.Last
		r.PrevClose = q.PrevClose
	}
	if r.PrevClose > 0 {
		r.QuoteChange = math.Round((r.Price-r.PrevClose)/r.PrevClose*10000) / 100
	}
	r.EPS = math.Round(r.Price/r.PE*100) / 100
	r.ROE = math.Round(r.PB/r.PE*10000) / 100
	return r
}

// Engine runs one diagnosis: compute indicators, attempt the reasoning
// delegate, and fall back to the local rule scorer. Insufficient history is
// a defined terminal result, never an error.
type Engine struct {
	delegate *Delegate
	local    *LocalScorer
	log      *xlogger.Logger
	metrics  repository.Metrics
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

func WithEngineDelegate(d *Delegate) EngineOption {
	return func(e *Engine) { e.delegate = d }
}

func WithEngineLocalScorer(s *LocalScorer) EngineOption {
	return func(e *Engine) { e.local = s }
}

func WithEngineLogger(log *xlogger.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		local: NewLocalScorer(),
		log:   xlogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze produces the diagnosis for one symbol from its live quote and
// daily bars.
func (e *Engine) Analyze(ctx context.Context, name, symbol string, quote *models.QuoteSnapshot, bars []models.Bar) *models.AnalysisResult {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordLatency("diagnose", time.Since(start).Seconds())
		}
	}()

	ratios := DeriveRatios(quote)

	snap, err := indicator.Compute(bars)
	if err != nil {
		return insufficientSampleResult(symbol, ratios)
	}

	if name == "" && quote != nil {
		name = quote.Name
	}

	if e.delegate != nil {
		prompt := BuildPrompt(name, symbol, snap, ratios)
		rep, derr := e.delegate.Analyze(ctx, prompt)
		if derr == nil {
			e.recordDelegate("success")
			return e.fromDelegate(symbol, rep, snap, ratios)
		}
		if errors.Is(derr, ErrNoAPIKey) {
			e.recordDelegate("skipped")
		} else {
			e.recordDelegate("failure")
			e.log.Warn("reasoning delegate failed, using local scorer",
				xlogger.String("symbol", symbol),
				xlogger.Error(derr),
			)
		}
	}

	return e.local.Score(symbol, snap, ratios)
}

func (e *Engine) recordDelegate(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordDelegateCall(outcome)
	}
}

// fromDelegate converts a validated delegate report to the wire result,
// synthesizing the legacy conclusion and the trend judgments when omitted.
func (e *Engine) fromDelegate(symbol string, rep *report, snap indicator.Snapshot, r Ratios) *models.AnalysisResult {
	score := *rep.Score

	structured := rep.StructuredAnalysis
	if structured.Conclusion == "" {
		structured.Conclusion = structured.ShortSummary
	}
	if len(structured.TrendJudgment) == 0 {
		explanation := structured.ShortSummary
		if explanation == "" {
			explanation = "趋势观察中"
		}
		stage := structured.MainForce.Stage
		if stage == "" {
			stage = "震荡整理"
		}
		structured.TrendJudgment = []models.TrendJudgment{
			{Period: "短期 (7天)", Trend: stage, Explanation: explanation},
			{Period: "中期 (1个月)", Trend: "方向不明", Explanation: "中期趋势受制于市场整体环境。"},
			{Period: "长期 (半年以上)", Trend: "价值评估", Explanation: "建议结合年度财报进一步分析。"},
		}
	}

	signal := models.SignalNeutral
	switch {
	case score >= 65:
		signal = models.SignalBuy
	case score <= 35:
		signal = models.SignalSell
	}

	return &models.AnalysisResult{
		Symbol:       symbol,
		Advice:       truncateRunes(structured.ShortSummary, 15) + "...",
		Signal:       signal,
		Intensity:    int(math.Round(score)),
		MainForce:    "AI 诊断: " + structured.MainForce.Stage,
		DetailAdvice: "AI 智能诊断已生成",
		Structured:   structured,
		Indicators:   indicatorBlock(snap.VolumeRatio, snap.PriceChangePct, r),
	}
}

// insufficientSampleResult is the fixed terminal reply for short histories.
// Indicators still echo the quote-derived fundamentals.
func insufficientSampleResult(symbol string, r Ratios) *models.AnalysisResult {
	return &models.AnalysisResult{
		Symbol:       symbol,
		Advice:       "数据样本不足",
		Signal:       models.SignalNeutral,
		Intensity:    0,
		MainForce:    "暂无明显资金特征",
		DetailAdvice: "当前样本不足以支持深度行为分析。建议继续观察更多交易日的价量表现。",
		Structured: models.StructuredAnalysis{
			ShortSummary:    "样本不足，暂不具备参考价值。",
			DetailedSummary: "当前K线历史数据样本不足，无法进行深度的技术形态分析与资金博弈推导。建议等待更多交易数据累积后再行查看系统诊断结论。",
			Conclusion:      "数据样本不足",
			TechStatus:      "历史数据缺失。",
			MainForce: models.MainForce{
				Inference: "无法建立证据链。",
				Stage:     "未知",
				Evidence:  []string{},
			},
			TradingPlan: models.TradingPlan{Buy: "观望", Sell: "观望", Position: "空仓"},
			Scenarios:   models.Scenarios{Optimistic: "无", Neutral: "无", Pessimistic: "无"},
		},
		Indicators: models.IndicatorBlock{
			VolRatio:      1.0,
			PriceChange:   r.QuoteChange,
			PE:            r.PE,
			PB:            r.PB,
			ROE:           r.ROE,
			EPS:           r.EPS,
			DebtRatio:     r.DebtRatio,
			DividendYield: 0.0,
			PSRatio:       1.0,
			RevenueGrowth: 0.0,
		},
	}
}
