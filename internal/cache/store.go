package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"stock_screener/internal/models"
)

// 缓存文件命名约定：{YYYY-MM-DD}_current_stocks.txt 为当日选股结果，
// {YYYY-MM-DD}_strategy.txt 预留给策略结果
const (
	currentSuffix  = "_current_stocks.txt"
	strategySuffix = "_strategy.txt"

	categoryCurrent  = "current"
	categoryStrategy = "strategy"
)

// 制表符分隔文件表头
var header = []string{"代码", "名称", "涨跌幅", "最新价", "换手率", "量比", "流通市值"}

// Store 当日缓存存储：每个日期一份选股结果，写入为整文件替换
type Store struct {
	dir    string
	mu     sync.Mutex // 串行化写入，避免同日并发强刷互相覆盖到一半
	logger *zap.Logger
}

// NewStore 创建缓存存储
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+currentSuffix)
}

// Exists 判断指定日期的缓存是否存在
func (s *Store) Exists(date string) bool {
	_, err := os.Stat(s.path(date))
	return err == nil
}

// Read 读取指定日期的缓存，未命中返回 false。
// 代码列按字符串读取，保留 6 位前导零。
func (s *Store) Read(date string) ([]models.StockSnapshot, bool) {
	f, err := os.Open(s.path(date))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var rows []models.StockSnapshot
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			first = false // 表头
			continue
		}
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 7 {
			s.logger.Warn("缓存行格式异常已跳过", zap.String("date", date), zap.String("line", line))
			continue
		}
		rows = append(rows, models.StockSnapshot{
			Code:           models.PadCode(cols[0]),
			Name:           cols[1],
			ChangePercent:  parseFloat(cols[2]),
			Price:          parseFloat(cols[3]),
			TurnoverRate:   parseFloat(cols[4]),
			VolumeRatio:    parseFloat(cols[5]),
			FloatMarketCap: parseFloat(cols[6]),
		})
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("缓存读取失败", zap.String("date", date), zap.Error(err))
		return nil, false
	}
	return rows, true
}

// Write 写入指定日期的缓存。空结果不落盘，避免把一次抓取失败
// 固化成“当日无匹配”。先写临时文件再重命名，读方不会看到半截文件。
func (s *Store) Write(date string, rows []models.StockSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+date+"-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Code,
			row.Name,
			formatFloat(row.ChangePercent),
			formatFloat(row.Price),
			formatFloat(row.TurnoverRate),
			formatFloat(row.VolumeRatio),
			formatFloat(row.FloatMarketCap),
		)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(date)); err != nil {
		return fmt.Errorf("替换缓存文件失败: %w", err)
	}
	return nil
}

// List 枚举缓存文件，按修改时间倒序
func (s *Store) List() []models.CacheFileInfo {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []models.CacheFileInfo{}
	}

	files := make([]models.CacheFileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		category := categoryStrategy
		if strings.HasSuffix(name, currentSuffix) {
			category = categoryCurrent
		}
		files = append(files, models.CacheFileInfo{
			Filename:     name,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
			Category:     category,
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedTime > files[j].ModifiedTime
	})
	return files
}

// Clear 按范围删除缓存文件。scope 取 all / current / strategy，
// dateFilter 非空时仅删除文件名包含该日期的文件；目录不存在视为删除 0 个。
func (s *Store) Clear(scope, dateFilter string) []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []string{}
	}

	deleted := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}

		match := false
		switch scope {
		case "all":
			match = true
		case categoryCurrent:
			match = strings.HasSuffix(name, currentSuffix)
		case categoryStrategy:
			match = strings.HasSuffix(name, strategySuffix)
		}
		if !match {
			continue
		}
		if dateFilter != "" && !strings.Contains(name, dateFilter) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("删除缓存文件失败", zap.String("filename", name), zap.Error(err))
			continue
		}
		deleted = append(deleted, name)
	}
	return deleted
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
