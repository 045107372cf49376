package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"StockPicker/internal/backtest"
	"StockPicker/internal/collector"
	"StockPicker/internal/recorder"
)

// maxListed caps the candidates shown in one message.
const maxListed = 20

// FormatScreenReport formats a screening run into a Telegram message.
func FormatScreenReport(run *recorder.ScreenRun) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>StockPicker 选股</b> | %s\n\n", run.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("评估: %d | 入选: %d | 跳过: %d | 失败: %d\n",
		run.Evaluated, run.Passed, run.Skipped, run.Failed))
	b.WriteString(fmt.Sprintf("耗时: %s\n\n", run.Elapsed.Round(time.Millisecond)))

	passed := run.PassedCandidates()
	if len(passed) == 0 {
		b.WriteString("❌ 今日无符合条件的股票")
		return b.String()
	}

	b.WriteString("📈 <b>入选列表 (J 升序):</b>\n")
	for i, c := range passed {
		if i == maxListed {
			b.WriteString(fmt.Sprintf("  … 另有 %d 只\n", len(passed)-maxListed))
			break
		}
		b.WriteString(fmt.Sprintf("  %2d. <code>%s</code> J=%+.2f 收盘 %.2f 成交 %s\n",
			i+1, html.EscapeString(c.Symbol), c.J, c.LatestClose, humanVolume(c.Turnover)))
	}
	return b.String()
}

// FormatBacktestReport formats a single-symbol backtest summary.
func FormatBacktestReport(rep *backtest.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧪 <b>回测</b> | <code>%s</code>\n\n", html.EscapeString(rep.Symbol)))
	b.WriteString(fmt.Sprintf("K线数: %d | 订单: %d | 成交: %d\n", rep.Bars, len(rep.Intents), rep.Fills))
	b.WriteString(fmt.Sprintf("初始资金: %.2f\n", rep.InitialValue))
	b.WriteString(fmt.Sprintf("期末市值: %.2f (%+.2f%%)\n", rep.FinalValue, rep.Return*100))
	if rep.FinalState.PositionSize > 0 {
		b.WriteString(fmt.Sprintf("当前持仓: %.0f @ %.2f\n", rep.FinalState.PositionSize, rep.FinalState.EntryPrice))
	}
	if n := len(rep.Intents); n > 0 {
		b.WriteString("\n📝 <b>最近订单:</b>\n")
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, in := range rep.Intents[start:] {
			b.WriteString(fmt.Sprintf("  %s %s %.0f @ %.2f (%s)\n",
				in.Date.Format("2006-01-02"), in.Action, in.Size, in.Price, in.Reason))
		}
	}
	return b.String()
}

// FormatDownloadReport formats a download summary.
func FormatDownloadReport(rep *collector.DownloadReport) string {
	var b strings.Builder
	b.WriteString("📥 <b>数据下载完成</b>\n\n")
	b.WriteString(fmt.Sprintf("成功: %d | 失败: %d | 重试: %d\n", len(rep.Succeeded), len(rep.Failed), rep.Retried))
	b.WriteString(fmt.Sprintf("耗时: %s\n", rep.Elapsed.Round(time.Second)))
	if len(rep.Failed) > 0 {
		names := make([]string, 0, len(rep.Failed))
		for i, f := range rep.Failed {
			if i == maxListed {
				names = append(names, "…")
				break
			}
			names = append(names, html.EscapeString(f.Symbol))
		}
		b.WriteString(fmt.Sprintf("失败列表: %s\n", strings.Join(names, ", ")))
	}
	return b.String()
}

func humanVolume(v float64) string {
	switch {
	case v >= 1e8:
		return fmt.Sprintf("%.2f亿", v/1e8)
	case v >= 1e4:
		return fmt.Sprintf("%.2f万", v/1e4)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
