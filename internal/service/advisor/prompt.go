package advisor

import (
	"fmt"
	"strings"

	"StockPulse/internal/service/indicator"
)

// systemPrompt frames the delegate as a data-driven advisor and demands bare
// JSON output.
const systemPrompt = "你是一名专业的A股人工智能投资顾问。你的分析必须基于数据，遵循'讲人话、用逻辑代替情绪、条件触发建议、充分风险提示'的原则。请直接输出合法的JSON格式结果，不要包含Markdown代码块。"

// BuildPrompt renders the diagnosis prompt for one symbol. The embedded JSON
// skeleton is the delegate's output contract.
func BuildPrompt(name, symbol string, snap indicator.Snapshot, r Ratios) string {
	var b strings.Builder

	fmt.Fprintf(&b, "分析标的: %s (%s)\n", name, symbol)
	fmt.Fprintf(&b, "当前价格: %.2f\n", r.Price)
	fmt.Fprintf(&b, "涨跌幅: %.2f%%\n", snap.PriceChangePct)
	fmt.Fprintf(&b, "量比: %.2f\n", snap.VolumeRatio)
	b.WriteString("技术参数:\n")
	fmt.Fprintf(&b, "- MA5/10/20: %.2f/%.2f/%.2f\n", snap.MA5, snap.MA10, snap.MA20)
	fmt.Fprintf(&b, "- 收盘价: %.2f\n", snap.Close)
	fmt.Fprintf(&b, "- 成交量对比: 今日 %.0f, 5日均量 %.0f\n", snap.VolMA5*snap.VolumeRatio, snap.VolMA5)
	fmt.Fprintf(&b, "- 核心财务数据: PE: %g, PB: %g, ROE: %g%%, EPS: %g\n", r.PE, r.PB, r.ROE, r.EPS)

	b.WriteString(`
请输出严格符合以下格式的JSON诊断报告：
{
    "short_summary": "极简扼要的一句话结论，如'跌得很惨，机构在跑，短期别碰'，需犀利精准",
    "detailed_summary": "更详细的深度解释，涵盖走势、资金、技术面分值、业绩及风险提示",
    "score": 0-100之间的整数评分,反映资金强度,
    "tech_status": "描述趋势、量能、强弱",
    "main_force": {
        "inference": "资金介入概率推断",
        "stage": "当前阶段(如吸筹、拉升、派发)",
        "evidence": ["证据1", "证据2", "证据3"]
    },
    "trading_plan": {
        "buy": "基于'如果...那么...'表达的进入点",
        "sell": "带条件的离场/止损点",
        "position": "仓位建议"
    },
    "scenarios": {
        "optimistic": "乐观路径",
        "neutral": "中性路径",
        "pessimistic": "悲观路径"
    },
    "trend_judgment": [
        {"period": "短期 (7天)", "trend": "趋势词(如强势上涨/振荡整理)", "explanation": "简短说明"},
        {"period": "中期 (1个月)", "trend": "趋势词", "explanation": "简短说明"},
        {"period": "长期 (半年以上)", "trend": "趋势词", "explanation": "简短说明"}
    ]
}
`)
	return b.String()
}
