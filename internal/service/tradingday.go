package service

import (
	"fmt"
	"time"

	"stock_screener/internal/config"
	"stock_screener/internal/models"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// TradingCalendar 交易日时钟：根据每日截止时刻判定当前权威数据日期，
// 并计算下一次刷新时刻。纯计算，不访问缓存或网络。
type TradingCalendar struct {
	cutoffHour   int
	cutoffMinute int
	holidays     map[string]struct{}
}

// NewTradingCalendar 创建交易日时钟，cutoff 形如 "14:50"
func NewTradingCalendar(cfg *config.ScheduleConfig) (*TradingCalendar, error) {
	t, err := time.Parse("15:04", cfg.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("解析截止时刻失败: %w", err)
	}
	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		holidays[d] = struct{}{}
	}
	return &TradingCalendar{
		cutoffHour:   t.Hour(),
		cutoffMinute: t.Minute(),
		holidays:     holidays,
	}, nil
}

// cutoffOn 返回指定日期的截止时刻
func (c *TradingCalendar) cutoffOn(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.cutoffHour, c.cutoffMinute, 0, 0, d.Location())
}

// IsTradingDay 周一至周五且不在节假日表中
func (c *TradingCalendar) IsTradingDay(d time.Time) bool {
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[d.Format(dateLayout)]
	return !holiday
}

// LastTradingDay 自 d 起（含 d）向前回溯最近的交易日
func (c *TradingCalendar) LastTradingDay(d time.Time) time.Time {
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Resolve 判定当前权威数据日期：截止时刻前为最近一个已收盘交易日，
// 截止时刻后为今日，并给出下次更新时间。
func (c *TradingCalendar) Resolve(now time.Time) models.DateInfo {
	cutoff := c.cutoffOn(now)

	if now.Before(cutoff) {
		// 截止前展示上一交易日数据（跳过周末与节假日）
		dataDate := c.LastTradingDay(now.AddDate(0, 0, -1))
		return models.DateInfo{
			DataDate:       dataDate.Format(dateLayout),
			IsTodayData:    false,
			CurrentTime:    now.Format(datetimeLayout),
			NextUpdateTime: cutoff.Format(datetimeLayout),
			TimeStatus:     fmt.Sprintf("昨日数据（%02d:%02d后更新为今日数据）", c.cutoffHour, c.cutoffMinute),
		}
	}

	// 截止后展示今日数据，下次更新为明日截止时刻
	return models.DateInfo{
		DataDate:       now.Format(dateLayout),
		IsTodayData:    true,
		CurrentTime:    now.Format(datetimeLayout),
		NextUpdateTime: cutoff.AddDate(0, 0, 1).Format(datetimeLayout),
		TimeStatus:     "今日数据",
	}
}
