package advisor

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/service/indicator"
)

// Jitter produces the bounded noise added to the local score. The default
// draws uniformly from [-2, +2]; tests pin it to zero.
type Jitter func() float64

func defaultJitter() float64 {
	return rand.Float64()*4 - 2
}

// LocalScorer is the deterministic rule engine used when the reasoning
// delegate is unavailable or rejected.
type LocalScorer struct {
	jitter Jitter
}

// LocalOption configures LocalScorer.
type LocalOption func(*LocalScorer)

func WithJitter(j Jitter) LocalOption {
	return func(s *LocalScorer) { s.jitter = j }
}

func NewLocalScorer(opts ...LocalOption) *LocalScorer {
	s := &LocalScorer{jitter: defaultJitter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score produces the full diagnosis from indicators alone.
func (s *LocalScorer) Score(symbol string, snap indicator.Snapshot, r Ratios) *models.AnalysisResult {
	score := 50.0
	var reasons []string

	// Trend: moving-average alignment.
	switch {
	case snap.MA5 > snap.MA10 && snap.MA10 > snap.MA20:
		score += 15
		reasons = append(reasons, "均线多头排列")
	case snap.MA5 < snap.MA10 && snap.MA10 < snap.MA20:
		score -= 15
		reasons = append(reasons, "均线空头排列")
	}

	// Momentum: RSI zones.
	switch {
	case snap.RSI > 70:
		score -= 5
		reasons = append(reasons, "RSI处于超买区")
	case snap.RSI < 30:
		score += 10
		reasons = append(reasons, "RSI处于超跌区")
	case snap.RSI > 50 && snap.RSI > snap.PrevRSI:
		score += 5
		reasons = append(reasons, "多头动能增强")
	}

	// MACD histogram height mapped onto a bounded contribution.
	macdScore := clamp(snap.Histogram*20, -15, 15)
	score += macdScore
	if snap.Histogram > 0 {
		if macdScore > 0 {
			reasons = append(reasons, "MACD金叉区域")
		} else {
			reasons = append(reasons, "MACD红柱缩短")
		}
	} else {
		reasons = append(reasons, "MACD死叉区域")
	}

	// Volume and price action.
	volContribution := (snap.VolumeRatio - 1) * 10
	score += clamp(volContribution+snap.PriceChangePct, -20, 20)
	if snap.VolumeRatio > 1.2 {
		if snap.Close > snap.PrevClose {
			reasons = append(reasons, "成交放量")
		} else {
			reasons = append(reasons, "放量下跌")
		}
	}

	score += s.jitter()
	score = clamp(score, 2, 98)
	intensity := int(math.Round(score))

	var signal, stage, shortSummary, detailedSummary string
	lead := "成交量维持现状"
	if len(reasons) > 0 {
		lead = reasons[0]
	}
	switch {
	case score >= 65:
		signal = models.SignalBuy
		stage = "强力拉升"
		shortSummary = "多头占优，放量突破，建议持股。"
		detailedSummary = fmt.Sprintf("该股近期表现强劲，%s。技术面得分较高，股价稳步站在均线系统上方，短期内仍有向上拓展空间的动力。", lead)
	case score <= 35:
		signal = models.SignalSell
		stage = "弱势探底"
		shortSummary = "跌得很惨，机构在跑，短期别碰。"
		detailedSummary = fmt.Sprintf("该股近期走势极弱，资金持续流出，%s。技术面得分偏低，各级指标均处于空头区域，建议回避风险。", lead)
	default:
		signal = models.SignalNeutral
		stage = "震荡博弈"
		shortSummary = "多空博弈，趋势不明，建议观望。"
		detailedSummary = fmt.Sprintf("目前股价处于胶着状态，%s。多空双方力量均衡，建议在关键支撑位与压力位之间窄幅波动观望。", lead)
	}

	conclusion := shortSummary
	trend := []models.TrendJudgment{
		{Period: "短期 (7天)", Trend: stage, Explanation: conclusion},
		{Period: "中期 (1个月)", Trend: "震荡调整", Explanation: "中期趋势受阻，需关注大盘走势。"},
		{Period: "长期 (半年以上)", Trend: "价值回归", Explanation: "长期基本面稳健，具备配置价值。"},
	}

	return &models.AnalysisResult{
		Symbol:       symbol,
		Advice:       truncateRunes(conclusion, 15) + "...",
		Signal:       signal,
		Intensity:    intensity,
		MainForce:    "本地引擎: " + stage,
		DetailAdvice: detailedSummary,
		Structured: models.StructuredAnalysis{
			ShortSummary:    shortSummary,
			DetailedSummary: detailedSummary,
			Conclusion:      conclusion,
			TechStatus:      strings.Join(reasons, " | "),
			MainForce: models.MainForce{
				Stage:     stage,
				Inference: "中等规模资金参与",
				Evidence:  reasons,
			},
			TradingPlan: models.TradingPlan{
				Buy:      "突破关键位买入",
				Sell:     "破位5日线止损",
				Position: "3-5成仓位",
			},
			Scenarios: models.Scenarios{
				Optimistic:  "向上突破",
				Neutral:     "区间震荡",
				Pessimistic: "放量下跌",
			},
			TrendJudgment: trend,
		},
		Indicators: indicatorBlock(snap.VolumeRatio, snap.PriceChangePct, r),
	}
}

// indicatorBlock fills the numeric echo block. The placeholder fundamentals
// mirror what the upstream feeds cannot provide per-symbol.
func indicatorBlock(volRatio, priceChange float64, r Ratios) models.IndicatorBlock {
	return models.IndicatorBlock{
		VolRatio:      round2(volRatio),
		PriceChange:   round2(priceChange),
		PE:            r.PE,
		PB:            r.PB,
		ROE:           r.ROE,
		EPS:           r.EPS,
		DebtRatio:     r.DebtRatio,
		DividendYield: 3.2,
		PSRatio:       2.5,
		RevenueGrowth: 15.6,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
