package service

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"stock_screener/internal/config"
	"stock_screener/internal/models"
)

// 指标计算一次性拉取的 K 线条数，同一批数据滑动计算各指标
const klineLookback = 80

// HistoryProvider 指标计算所需的历史 K 线来源
type HistoryProvider interface {
	GetDailyKlines(ctx context.Context, code string, count int) ([]models.KLine, error)
}

// Indicator 技术指标检查单元：按注册顺序依次过滤，Evaluate 不向外传播错误，
// 单只股票计算失败视为未通过，不影响其余股票的筛选。
type Indicator interface {
	Key() string
	Name() string
	Enabled() bool
	Evaluate(ctx context.Context, code string, asOf time.Time) bool
}

// BuildIndicators 按配置顺序构建指标列表，未知 key 记录告警后跳过
func BuildIndicators(cfgs []config.IndicatorConfig, history HistoryProvider, logger *zap.Logger) []Indicator {
	indicators := make([]Indicator, 0, len(cfgs))
	for _, cfg := range cfgs {
		base := baseIndicator{cfg: cfg, history: history, logger: logger}
		switch strings.ToUpper(cfg.Key) {
		case "RSI":
			indicators = append(indicators, &rsiIndicator{base})
		case "MACD":
			indicators = append(indicators, &macdIndicator{base})
		case "BOLL":
			indicators = append(indicators, &bollIndicator{base})
		case "OBV":
			indicators = append(indicators, &obvIndicator{base})
		default:
			logger.Warn("未知指标已跳过", zap.String("key", cfg.Key))
		}
	}
	return indicators
}

type baseIndicator struct {
	cfg     config.IndicatorConfig
	history HistoryProvider
	logger  *zap.Logger
}

func (b *baseIndicator) Key() string   { return b.cfg.Key }
func (b *baseIndicator) Name() string  { return b.cfg.Name }
func (b *baseIndicator) Enabled() bool { return b.cfg.Enabled }

// klinesAsOf 拉取 K 线并截断到 asOf 当日（含），失败返回 nil
func (b *baseIndicator) klinesAsOf(ctx context.Context, code string, asOf time.Time) []models.KLine {
	klines, err := b.history.GetDailyKlines(ctx, code, klineLookback)
	if err != nil {
		b.logger.Debug("获取历史 K 线失败",
			zap.String("indicator", b.cfg.Key),
			zap.String("code", code),
			zap.Error(err))
		return nil
	}
	cutoff := asOf.Format(dateLayout)
	for len(klines) > 0 && klines[len(klines)-1].Date > cutoff {
		klines = klines[:len(klines)-1]
	}
	return klines
}

// rsiIndicator RSI 指标：要求处于 [min, max] 区间，排除超买超卖
type rsiIndicator struct{ baseIndicator }

func (r *rsiIndicator) Evaluate(ctx context.Context, code string, asOf time.Time) bool {
	klines := r.klinesAsOf(ctx, code, asOf)
	period := r.cfg.Period
	if period <= 0 {
		period = 14
	}
	if len(klines) < period+1 {
		return false
	}

	closes := closesOf(klines)
	value := rsi(closes, period)
	return value >= r.cfg.Min && value <= r.cfg.Max
}

// rsi 以末尾 period+1 根收盘价计算相对强弱指标
func rsi(closes []float64, period int) float64 {
	closes = closes[len(closes)-period-1:]
	var gains, losses float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// macdIndicator MACD 金叉：DIF 上穿 DEA 视为通过
type macdIndicator struct{ baseIndicator }

func (m *macdIndicator) Evaluate(ctx context.Context, code string, asOf time.Time) bool {
	fast, slow, signal := m.cfg.Fast, m.cfg.Slow, m.cfg.Signal
	if fast <= 0 || slow <= 0 || signal <= 0 {
		fast, slow, signal = 12, 26, 9
	}

	klines := m.klinesAsOf(ctx, code, asOf)
	if len(klines) < slow+signal {
		return false
	}

	closes := closesOf(klines)
	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea := ema(dif, signal)

	last := len(closes) - 1
	return dif[last] > dea[last] && dif[last-1] <= dea[last-1]
}

// bollIndicator 布林线突破：收盘价站上上轨
type bollIndicator struct{ baseIndicator }

func (b *bollIndicator) Evaluate(ctx context.Context, code string, asOf time.Time) bool {
	period := b.cfg.Period
	if period <= 0 {
		period = 20
	}

	klines := b.klinesAsOf(ctx, code, asOf)
	if len(klines) < period {
		return false
	}

	closes := closesOf(klines)
	window := closes[len(closes)-period:]

	mid := mean(window)
	var variance float64
	for _, v := range window {
		diff := v - mid
		variance += diff * diff
	}
	upper := mid + 2*math.Sqrt(variance/float64(period))

	return closes[len(closes)-1] > upper
}

// obvIndicator 量能潮：OBV 位于其均线上方，验证量价同步
type obvIndicator struct{ baseIndicator }

func (o *obvIndicator) Evaluate(ctx context.Context, code string, asOf time.Time) bool {
	period := o.cfg.Period
	if period <= 0 {
		period = 14
	}

	klines := o.klinesAsOf(ctx, code, asOf)
	if len(klines) < period+1 {
		return false
	}

	obv := make([]float64, len(klines))
	for i := 1; i < len(klines); i++ {
		switch {
		case klines[i].Close > klines[i-1].Close:
			obv[i] = obv[i-1] + float64(klines[i].Volume)
		case klines[i].Close < klines[i-1].Close:
			obv[i] = obv[i-1] - float64(klines[i].Volume)
		default:
			obv[i] = obv[i-1]
		}
	}

	obvMA := mean(obv[len(obv)-period:])
	return obv[len(obv)-1] > obvMA
}

func closesOf(klines []models.KLine) []float64 {
	closes := make([]float64, len(klines))
	for i := range klines {
		closes[i] = klines[i].Close
	}
	return closes
}

// ema 指数移动平均，返回与输入等长的序列
func ema(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = (data[i]-out[i-1])*k + out[i-1]
	}
	return out
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}
