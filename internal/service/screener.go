package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stock_screener/internal/cache"
	"stock_screener/internal/config"
	"stock_screener/internal/models"
)

// 主板 A 股代码前缀：深市 00、沪市 60
var mainBoardPrefixes = []string{"00", "60"}

// SnapshotProvider 全市场实时快照来源
type SnapshotProvider interface {
	GetSpotSnapshot(ctx context.Context) ([]models.StockSnapshot, error)
}

// Screener 选股服务：行情快照 → 静态初选 → 技术指标过滤 → 当日缓存。
// 对外只返回结果集，行情源不可用、缓存未命中等预期状况一律以空结果表达。
type Screener struct {
	provider   SnapshotProvider
	store      *cache.Store
	calendar   *TradingCalendar
	criteria   *config.ScreenerConfig
	indicators []Indicator
	logger     *zap.Logger
	now        func() time.Time
}

// NewScreener 创建选股服务
func NewScreener(provider SnapshotProvider, store *cache.Store, calendar *TradingCalendar,
	criteria *config.ScreenerConfig, indicators []Indicator, logger *zap.Logger) *Screener {
	return &Screener{
		provider:   provider,
		store:      store,
		calendar:   calendar,
		criteria:   criteria,
		indicators: indicators,
		logger:     logger,
		now:        time.Now,
	}
}

// ApplySelection 静态初选：仅保留主板 A 股，且涨跌幅、换手率、流通市值
// 落在闭区间内，量比严格大于下限。结果恒为非 nil。
func ApplySelection(snapshot []models.StockSnapshot, criteria *config.ScreenerConfig) []models.StockSnapshot {
	selected := make([]models.StockSnapshot, 0)
	for _, s := range snapshot {
		if !isMainBoard(s.Code) {
			continue
		}
		if s.ChangePercent < criteria.ChangePctMin || s.ChangePercent > criteria.ChangePctMax {
			continue
		}
		if s.TurnoverRate < criteria.TurnoverMin || s.TurnoverRate > criteria.TurnoverMax {
			continue
		}
		if s.FloatMarketCap < criteria.FloatCapMin || s.FloatMarketCap > criteria.FloatCapMax {
			continue
		}
		// 量比为严格大于，与其余闭区间条件有意不对称
		if s.VolumeRatio <= criteria.VolumeRatioMin {
			continue
		}
		selected = append(selected, s)
	}
	return selected
}

func isMainBoard(code string) bool {
	for _, prefix := range mainBoardPrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// GetActiveStocks 获取符合条件的活跃股票。
// useCache 优先读取当前权威日期的缓存；saveCache 将实时筛选结果落盘（以当天日期）；
// forceRefresh 跳过缓存强制实时筛选。任何情况下都返回非 nil 结果集。
func (s *Screener) GetActiveStocks(ctx context.Context, useCache, saveCache, forceRefresh bool) []models.StockSnapshot {
	now := s.now()

	if useCache && !forceRefresh {
		info := s.calendar.Resolve(now)
		if rows, ok := s.store.Read(info.DataDate); ok && len(rows) > 0 {
			s.logger.Info("缓存数据加载成功",
				zap.String("date", info.DataDate),
				zap.Int("count", len(rows)))
			return rows
		}
		// 权威日期未命中时再看今日缓存（截止前刚强制刷新过的场景）
		today := now.Format(dateLayout)
		if today != info.DataDate {
			if rows, ok := s.store.Read(today); ok && len(rows) > 0 {
				s.logger.Info("今日缓存数据加载成功", zap.Int("count", len(rows)))
				return rows
			}
		}
	}

	rows := s.screenLive(ctx)
	if len(rows) == 0 {
		return []models.StockSnapshot{}
	}

	if saveCache {
		saveDate := s.now().Format(dateLayout)
		if err := s.store.Write(saveDate, rows); err != nil {
			s.logger.Warn("缓存保存失败", zap.Error(err))
		} else {
			s.logger.Info("数据已缓存", zap.String("date", saveDate), zap.Int("count", len(rows)))
		}
	}
	return rows
}

// screenLive 实时筛选：快照拉取失败或任一环节筛空即返回空
func (s *Screener) screenLive(ctx context.Context) []models.StockSnapshot {
	s.logger.Info("正在获取实时股票数据")

	snapshot, err := s.provider.GetSpotSnapshot(ctx)
	if err != nil {
		s.logger.Error("获取实时行情失败", zap.Error(err))
		return nil
	}
	if len(snapshot) == 0 {
		s.logger.Warn("未能获取到 A 股实时数据")
		return nil
	}

	selected := ApplySelection(snapshot, s.criteria)
	if len(selected) == 0 {
		s.logger.Info("没有符合初步筛选条件的股票")
		return nil
	}
	s.logger.Info("初步筛选完成", zap.Int("count", len(selected)))

	asOf := s.now()
	for _, ind := range s.indicators {
		if !ind.Enabled() {
			continue
		}
		before := len(selected)
		selected = s.filterByIndicator(ctx, ind, selected, asOf)
		s.logger.Info("指标筛选",
			zap.String("indicator", ind.Key()),
			zap.Int("before", before),
			zap.Int("after", len(selected)))
		if len(selected) == 0 {
			// 任一指标筛空即终止，后续指标不再计算
			return nil
		}
	}
	return selected
}

// filterByIndicator 对当前结果集逐只计算指标，限流并发，保持原有顺序
func (s *Screener) filterByIndicator(ctx context.Context, ind Indicator, rows []models.StockSnapshot, asOf time.Time) []models.StockSnapshot {
	keep := make([]bool, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.criteria.Concurrency)
	for i := range rows {
		i := i
		g.Go(func() error {
			keep[i] = ind.Evaluate(gctx, rows[i].Code, asOf)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.StockSnapshot, 0, len(rows))
	for i, ok := range keep {
		if ok {
			out = append(out, rows[i])
		}
	}
	return out
}
