package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_screener/internal/config"
)

func newTestCalendar(t *testing.T, holidays ...string) *TradingCalendar {
	t.Helper()
	calendar, err := NewTradingCalendar(&config.ScheduleConfig{
		Cutoff:   "14:50",
		Holidays: holidays,
	})
	require.NoError(t, err)
	return calendar
}

// TestResolve_BeforeCutoff 测试截止前展示上一交易日数据
func TestResolve_BeforeCutoff(t *testing.T) {
	calendar := newTestCalendar(t)

	// 2025-08-26 周二 14:49:59
	now := time.Date(2025, 8, 26, 14, 49, 59, 0, time.Local)
	info := calendar.Resolve(now)

	assert.False(t, info.IsTodayData)
	assert.Equal(t, "2025-08-25", info.DataDate)
	assert.Equal(t, "2025-08-26 14:50:00", info.NextUpdateTime)
	assert.Contains(t, info.TimeStatus, "昨日数据")
	assert.Contains(t, info.TimeStatus, "14:50")
}

// TestResolve_AtCutoff 测试截止时刻整点切换为今日数据
func TestResolve_AtCutoff(t *testing.T) {
	calendar := newTestCalendar(t)

	// 2025-08-26 周二 14:50:00
	now := time.Date(2025, 8, 26, 14, 50, 0, 0, time.Local)
	info := calendar.Resolve(now)

	assert.True(t, info.IsTodayData)
	assert.Equal(t, "2025-08-26", info.DataDate)
	assert.Equal(t, "今日数据", info.TimeStatus)

	// 下次更新恰好在 24 小时后的截止时刻
	next, err := time.ParseInLocation("2006-01-02 15:04:05", info.NextUpdateTime, time.Local)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, next.Sub(time.Date(2025, 8, 26, 14, 50, 0, 0, time.Local)))
}

// TestResolve_MondayBeforeCutoff 测试周一截止前回溯到上周五
func TestResolve_MondayBeforeCutoff(t *testing.T) {
	calendar := newTestCalendar(t)

	// 2025-08-25 周一 09:00
	now := time.Date(2025, 8, 25, 9, 0, 0, 0, time.Local)
	info := calendar.Resolve(now)

	assert.False(t, info.IsTodayData)
	assert.Equal(t, "2025-08-22", info.DataDate)
}

// TestResolve_SkipsHoliday 测试节假日与周末一起被跳过
func TestResolve_SkipsHoliday(t *testing.T) {
	calendar := newTestCalendar(t, "2025-08-25")

	// 2025-08-26 周二 09:00，周一为节假日，应回溯到上周五
	now := time.Date(2025, 8, 26, 9, 0, 0, 0, time.Local)
	info := calendar.Resolve(now)

	assert.False(t, info.IsTodayData)
	assert.Equal(t, "2025-08-22", info.DataDate)
}

// TestIsTradingDay 测试交易日判定
func TestIsTradingDay(t *testing.T) {
	calendar := newTestCalendar(t, "2025-08-26")

	assert.True(t, calendar.IsTradingDay(time.Date(2025, 8, 25, 0, 0, 0, 0, time.Local)))  // 周一
	assert.False(t, calendar.IsTradingDay(time.Date(2025, 8, 23, 0, 0, 0, 0, time.Local))) // 周六
	assert.False(t, calendar.IsTradingDay(time.Date(2025, 8, 24, 0, 0, 0, 0, time.Local))) // 周日
	assert.False(t, calendar.IsTradingDay(time.Date(2025, 8, 26, 0, 0, 0, 0, time.Local))) // 节假日
}

// TestNewTradingCalendar_InvalidCutoff 测试非法截止时刻
func TestNewTradingCalendar_InvalidCutoff(t *testing.T) {
	_, err := NewTradingCalendar(&config.ScheduleConfig{Cutoff: "25:99"})
	require.Error(t, err)
}
