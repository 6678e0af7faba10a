package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Eastmoney  EastmoneyConfig   `mapstructure:"eastmoney"`
	Screener   ScreenerConfig    `mapstructure:"screener"`
	Indicators []IndicatorConfig `mapstructure:"indicators"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Schedule   ScheduleConfig    `mapstructure:"schedule"`
	Log        LogConfig         `mapstructure:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// EastmoneyConfig 东方财富行情接口配置
type EastmoneyConfig struct {
	BaseURL  string `mapstructure:"base_url"`  // 列表行情接口
	KlineURL string `mapstructure:"kline_url"` // K 线接口
	Timeout  int    `mapstructure:"timeout"`   // 请求超时（秒）
	Retry    int    `mapstructure:"retry"`     // 失败重试次数
}

// ScreenerConfig 初选条件：数值区间均为闭区间，量比为严格大于
type ScreenerConfig struct {
	ChangePctMin   float64 `mapstructure:"change_pct_min"`   // 涨跌幅下限(%)
	ChangePctMax   float64 `mapstructure:"change_pct_max"`   // 涨跌幅上限(%)
	TurnoverMin    float64 `mapstructure:"turnover_min"`     // 换手率下限(%)
	TurnoverMax    float64 `mapstructure:"turnover_max"`     // 换手率上限(%)
	FloatCapMin    float64 `mapstructure:"float_cap_min"`    // 流通市值下限(元)
	FloatCapMax    float64 `mapstructure:"float_cap_max"`    // 流通市值上限(元)
	VolumeRatioMin float64 `mapstructure:"volume_ratio_min"` // 量比最小值（不含）
	Concurrency    int     `mapstructure:"concurrency"`      // 指标计算并发数
}

// IndicatorConfig 技术指标配置，按声明顺序依次过滤
type IndicatorConfig struct {
	Key     string  `mapstructure:"key"`     // RSI / MACD / BOLL / OBV
	Name    string  `mapstructure:"name"`    // 展示名称
	Enabled bool    `mapstructure:"enabled"` // 是否启用
	Period  int     `mapstructure:"period"`  // 周期
	Min     float64 `mapstructure:"min"`     // 下限（RSI）
	Max     float64 `mapstructure:"max"`     // 上限（RSI）
	Fast    int     `mapstructure:"fast"`    // 快线（MACD）
	Slow    int     `mapstructure:"slow"`    // 慢线（MACD）
	Signal  int     `mapstructure:"signal"`  // 信号线（MACD）
}

// CacheConfig 当日缓存配置
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScheduleConfig 定时刷新配置
type ScheduleConfig struct {
	Cutoff   string   `mapstructure:"cutoff"`   // 每日截止时刻 HH:MM
	Holidays []string `mapstructure:"holidays"` // 节假日列表 YYYY-MM-DD
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig 验证配置并补默认值
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		config.Server.Port = 5000
	}
	if config.Server.Mode == "" {
		config.Server.Mode = "release"
	}

	if config.Eastmoney.BaseURL == "" {
		config.Eastmoney.BaseURL = "https://82.push2.eastmoney.com/api/qt/clist/get"
	}
	if config.Eastmoney.KlineURL == "" {
		config.Eastmoney.KlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	}
	if config.Eastmoney.Timeout <= 0 {
		config.Eastmoney.Timeout = 10
	}
	if config.Eastmoney.Retry < 0 {
		config.Eastmoney.Retry = 0
	}

	if config.Screener.ChangePctMin > config.Screener.ChangePctMax {
		return fmt.Errorf("涨跌幅区间无效: [%v, %v]", config.Screener.ChangePctMin, config.Screener.ChangePctMax)
	}
	if config.Screener.TurnoverMin > config.Screener.TurnoverMax {
		return fmt.Errorf("换手率区间无效: [%v, %v]", config.Screener.TurnoverMin, config.Screener.TurnoverMax)
	}
	if config.Screener.FloatCapMin > config.Screener.FloatCapMax {
		return fmt.Errorf("流通市值区间无效: [%v, %v]", config.Screener.FloatCapMin, config.Screener.FloatCapMax)
	}
	if config.Screener.Concurrency <= 0 {
		config.Screener.Concurrency = 10
	}

	for i := range config.Indicators {
		if config.Indicators[i].Key == "" {
			return fmt.Errorf("第 %d 个指标缺少 key", i+1)
		}
	}

	if config.Cache.Dir == "" {
		config.Cache.Dir = "data"
	}

	if config.Schedule.Cutoff == "" {
		config.Schedule.Cutoff = "14:50"
	}
	if _, err := time.Parse("15:04", config.Schedule.Cutoff); err != nil {
		return fmt.Errorf("截止时刻格式无效: %s", config.Schedule.Cutoff)
	}
	for _, d := range config.Schedule.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("节假日日期格式无效: %s", d)
		}
	}

	return nil
}
