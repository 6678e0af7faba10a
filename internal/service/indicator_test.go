package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock_screener/internal/config"
	"stock_screener/internal/models"
)

// fakeHistory 固定返回 K 线的历史数据源
type fakeHistory struct {
	klines []models.KLine
	err    error
}

func (f *fakeHistory) GetDailyKlines(ctx context.Context, code string, count int) ([]models.KLine, error) {
	return f.klines, f.err
}

// genKlines 依序生成日 K 线，起始日期 2025-01-02
func genKlines(closes []float64, volumes []int64) []models.KLine {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local)
	klines := make([]models.KLine, len(closes))
	for i, c := range closes {
		var vol int64 = 100000
		if volumes != nil {
			vol = volumes[i]
		}
		klines[i] = models.KLine{
			Date:   start.AddDate(0, 0, i).Format(dateLayout),
			Open:   c,
			Close:  c,
			High:   c,
			Low:    c,
			Volume: vol,
		}
	}
	return klines
}

var asOf = time.Date(2025, 12, 31, 15, 0, 0, 0, time.Local)

func buildOne(t *testing.T, cfg config.IndicatorConfig, history HistoryProvider) Indicator {
	t.Helper()
	indicators := BuildIndicators([]config.IndicatorConfig{cfg}, history, zap.NewNop())
	require.Len(t, indicators, 1)
	return indicators[0]
}

// TestBuildIndicators 测试按配置顺序构建、未知 key 跳过
func TestBuildIndicators(t *testing.T) {
	cfgs := []config.IndicatorConfig{
		{Key: "RSI", Name: "RSI指标", Enabled: true},
		{Key: "unknown", Name: "未知"},
		{Key: "boll", Name: "布林线", Enabled: false},
	}

	indicators := BuildIndicators(cfgs, &fakeHistory{}, zap.NewNop())
	require.Len(t, indicators, 2)
	assert.Equal(t, "RSI", indicators[0].Key())
	assert.True(t, indicators[0].Enabled())
	assert.Equal(t, "boll", indicators[1].Key())
	assert.False(t, indicators[1].Enabled())
}

// TestRSI_Neutral 测试涨跌均衡时 RSI 居中通过
func TestRSI_Neutral(t *testing.T) {
	// 交替 +1/-1，涨跌幅相抵，RSI = 50
	closes := make([]float64, 30)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "RSI", Enabled: true, Period: 14, Min: 30, Max: 70}, history)

	assert.True(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestRSI_Overbought 测试单边上涨时 RSI 为 100 被排除
func TestRSI_Overbought(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "RSI", Enabled: true, Period: 14, Min: 30, Max: 70}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestRSI_InsufficientData 测试数据不足视为未通过
func TestRSI_InsufficientData(t *testing.T) {
	history := &fakeHistory{klines: genKlines([]float64{10, 11, 12}, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "RSI", Enabled: true, Period: 14, Min: 30, Max: 70}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestRSI_FetchError 测试拉取失败视为未通过
func TestRSI_FetchError(t *testing.T) {
	history := &fakeHistory{err: assert.AnError}
	ind := buildOne(t, config.IndicatorConfig{Key: "RSI", Enabled: true, Period: 14, Min: 30, Max: 70}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestMACD_GoldenCross 测试回调末端放量拉升形成金叉
func TestMACD_GoldenCross(t *testing.T) {
	// 先涨后跌压低 DIF 至 DEA 下方，最后一根大阳线使 DIF 上穿
	closes := make([]float64, 0, 36)
	v := 100.0
	for i := 0; i < 20; i++ {
		v++
		closes = append(closes, v)
	}
	for i := 0; i < 15; i++ {
		v--
		closes = append(closes, v)
	}
	closes = append(closes, v+40)

	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "MACD", Enabled: true, Fast: 12, Slow: 26, Signal: 9}, history)

	assert.True(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestMACD_NoCross 测试持续下跌无金叉
func TestMACD_NoCross(t *testing.T) {
	closes := make([]float64, 0, 40)
	v := 100.0
	for i := 0; i < 20; i++ {
		v++
		closes = append(closes, v)
	}
	for i := 0; i < 20; i++ {
		v--
		closes = append(closes, v)
	}

	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "MACD", Enabled: true, Fast: 12, Slow: 26, Signal: 9}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestBOLL_Breakout 测试收盘价站上上轨
func TestBOLL_Breakout(t *testing.T) {
	// 19 根横盘 + 末根大涨，上轨约 10.97，收盘 12 突破
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	closes[19] = 12

	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "BOLL", Enabled: true, Period: 20}, history)

	assert.True(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestBOLL_Flat 测试横盘不构成突破
func TestBOLL_Flat(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}

	history := &fakeHistory{klines: genKlines(closes, nil)}
	ind := buildOne(t, config.IndicatorConfig{Key: "BOLL", Enabled: true, Period: 20}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}

// TestOBV 测试量价同步方向
func TestOBV(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 10 + float64(i)
		falling[i] = 30 - float64(i)
	}

	up := buildOne(t, config.IndicatorConfig{Key: "OBV", Enabled: true, Period: 14},
		&fakeHistory{klines: genKlines(rising, nil)})
	assert.True(t, up.Evaluate(context.Background(), "000001", asOf))

	down := buildOne(t, config.IndicatorConfig{Key: "OBV", Enabled: true, Period: 14},
		&fakeHistory{klines: genKlines(falling, nil)})
	assert.False(t, down.Evaluate(context.Background(), "000001", asOf))
}

// TestKlinesAsOf_TrimsFuture 测试晚于 asOf 的 K 线被截断
func TestKlinesAsOf_TrimsFuture(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	klines := genKlines(closes, nil)
	// 追加一根晚于 asOf 的大阳线，截断后不应参与计算
	klines = append(klines, models.KLine{Date: "2026-01-05", Close: 12, Volume: 100000})

	history := &fakeHistory{klines: klines}
	ind := buildOne(t, config.IndicatorConfig{Key: "BOLL", Enabled: true, Period: 20}, history)

	assert.False(t, ind.Evaluate(context.Background(), "000001", asOf))
}
