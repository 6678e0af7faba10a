package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stock_screener/internal/config"
	"stock_screener/internal/models"
)

// 列表接口请求字段：f2 最新价 f3 涨跌幅 f8 换手率 f10 量比 f12 代码 f14 名称 f21 流通市值
const spotFields = "f2,f3,f8,f10,f12,f14,f21"

// 沪深 A 股：深主板、创业板、沪主板、科创板
const spotMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"

// K 线接口字段：f51 日期 f52 开盘 f53 收盘 f54 最高 f55 最低 f56 成交量
const klineFields = "f51,f52,f53,f54,f55,f56"

const spotPageSize = 500

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// EastmoneyClient 东方财富行情客户端
type EastmoneyClient struct {
	baseURL  string
	klineURL string
	timeout  time.Duration
	retry    int
	client   *http.Client
}

// NewEastmoneyClient 创建行情客户端
func NewEastmoneyClient(cfg *config.EastmoneyConfig) *EastmoneyClient {
	return &EastmoneyClient{
		baseURL:  cfg.BaseURL,
		klineURL: cfg.KlineURL,
		timeout:  time.Duration(cfg.Timeout) * time.Second,
		retry:    cfg.Retry,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// GetSpotSnapshot 获取沪深 A 股全市场实时快照（分页拉取）
func (c *EastmoneyClient) GetSpotSnapshot(ctx context.Context) ([]models.StockSnapshot, error) {
	var all []models.StockSnapshot
	page := 1
	for {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&fid=f3&fs=%s&fields=%s",
			c.baseURL, page, spotPageSize, spotMarkets, spotFields)

		body, err := c.get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("获取行情快照失败: %w", err)
		}

		total, rows := parseSpotPage(body)
		all = append(all, rows...)

		if len(rows) == 0 || len(rows) < spotPageSize || len(all) >= total {
			break
		}
		page++
	}
	return all, nil
}

// parseSpotPage 解析列表接口单页：data.total 与 data.diff
func parseSpotPage(body []byte) (total int, rows []models.StockSnapshot) {
	total = int(gjson.GetBytes(body, "data.total").Int())

	diff := gjson.GetBytes(body, "data.diff")
	if !diff.Exists() {
		return total, nil
	}

	diff.ForEach(func(_, v gjson.Result) bool {
		code := models.PadCode(v.Get("f12").String())
		if code == "" {
			return true
		}
		// 停牌等场景字段为 "-"，gjson 解析为 0，按缺失值处理
		rows = append(rows, models.StockSnapshot{
			Code:           code,
			Name:           v.Get("f14").String(),
			ChangePercent:  v.Get("f3").Float(),
			Price:          v.Get("f2").Float(),
			TurnoverRate:   v.Get("f8").Float(),
			VolumeRatio:    v.Get("f10").Float(),
			FloatMarketCap: v.Get("f21").Float(),
		})
		return true
	})
	return total, rows
}

// GetDailyKlines 获取前复权日 K 线，count 为最大条数
func (c *EastmoneyClient) GetDailyKlines(ctx context.Context, code string, count int) ([]models.KLine, error) {
	if code == "" || count <= 0 {
		return nil, fmt.Errorf("无效的代码或条数")
	}
	if count > 1000 {
		count = 1000
	}

	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=1&lmt=%d",
		c.klineURL, secID(code), klineFields, count)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("获取 K 线失败: %w", err)
	}
	return parseKlines(body, code)
}

// parseKlines 解析 K 线接口返回：data.klines 为 "日期,开,收,高,低,量" 字符串数组
func parseKlines(body []byte, code string) ([]models.KLine, error) {
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("%s 无 K 线数据", code)
	}

	arr := klines.Array()
	out := make([]models.KLine, 0, len(arr))
	for _, v := range arr {
		parts := strings.Split(strings.TrimSpace(v.String()), ",")
		if len(parts) < 6 {
			continue
		}
		open, _ := strconv.ParseFloat(parts[1], 64)
		closeVal, _ := strconv.ParseFloat(parts[2], 64)
		high, _ := strconv.ParseFloat(parts[3], 64)
		low, _ := strconv.ParseFloat(parts[4], 64)
		vol, _ := strconv.ParseInt(parts[5], 10, 64)
		out = append(out, models.KLine{
			Date:   parts[0],
			Open:   open,
			Close:  closeVal,
			High:   high,
			Low:    low,
			Volume: vol,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s K 线数据为空", code)
	}
	return out, nil
}

// get 发送请求，带重试
func (c *EastmoneyClient) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	var lastErr error

	for i := 0; i <= c.retry; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}
		body, lastErr = c.doRequest(ctx, url)
		if lastErr == nil {
			return body, nil
		}
	}
	return nil, lastErr
}

// doRequest 执行 HTTP 请求
func (c *EastmoneyClient) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("接口返回状态码 %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return body, nil
}

// secID 转为东方财富 secid：沪市 1.600519，深市 0.000001
func secID(code string) string {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "1." + code
	}
	return "0." + code
}
