package models

import (
	"strings"
)

// StockSnapshot 实时行情快照单条数据
type StockSnapshot struct {
	Code           string  `json:"code"`           // 股票代码（6 位，保留前导零）
	Name           string  `json:"name"`           // 股票名称
	ChangePercent  float64 `json:"change_percent"` // 涨跌幅(%)
	Price          float64 `json:"price"`          // 最新价
	TurnoverRate   float64 `json:"turnover"`       // 换手率(%)
	VolumeRatio    float64 `json:"volume_ratio"`   // 量比
	FloatMarketCap float64 `json:"market_cap"`     // 流通市值(元)
}

// KLine 日 K 线数据
type KLine struct {
	Date   string  `json:"date"`   // 交易日期 YYYY-MM-DD
	Open   float64 `json:"open"`   // 开盘价
	Close  float64 `json:"close"`  // 收盘价
	High   float64 `json:"high"`   // 最高价
	Low    float64 `json:"low"`    // 最低价
	Volume int64   `json:"volume"` // 成交量（手）
}

// DateInfo 数据日期信息：由交易日时钟按当前时间推导，不落盘
type DateInfo struct {
	DataDate       string `json:"data_date"`        // 数据对应日期 YYYY-MM-DD
	IsTodayData    bool   `json:"is_today_data"`    // 是否为今日数据
	CurrentTime    string `json:"current_time"`     // 当前时间
	NextUpdateTime string `json:"next_update_time"` // 下次更新时间
	TimeStatus     string `json:"time_status"`      // 展示用状态说明
}

// CacheFileInfo 缓存文件信息
type CacheFileInfo struct {
	Filename     string `json:"filename"`      // 文件名
	Size         int64  `json:"size"`          // 文件大小（字节）
	ModifiedTime string `json:"modified_time"` // 最后修改时间
	Category     string `json:"type"`          // 分类：current / strategy
}

// PadCode 补齐股票代码为 6 位：纯数字且不足 6 位时左侧补零，
// 防止 "000001" 被按数字解析成 "1" 丢失前导零。
func PadCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) >= 6 {
		return code
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return code
		}
	}
	return strings.Repeat("0", 6-len(code)) + code
}
