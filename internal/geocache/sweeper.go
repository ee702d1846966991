// 清扫调度：在服务进程内的后台协程按固定间隔回收过期条目
package geocache

import (
	"context"
	"os"
	"strconv"
	"time"

	"geo-cache/internal/logger"
	"geo-cache/internal/metrics"
)

// StartSweeper：启动周期清扫协程
// 背景：惰性删除只覆盖被再次访问的键，长尾过期条目需要定期批量回收，避免统计与全量扫描被死数据拖累。
// 约束：间隔由 SWEEP_INTERVAL_MINUTES 覆盖（整数分钟，默认 60）；单轮带超时，错误记录日志后继续调度。
func StartSweeper(c *GeoCache) {
	l := logger.L()
	mins := 60
	if v := os.Getenv("SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			mins = n
		}
	}
	interval := time.Duration(mins) * time.Minute
	l.Info("sweeper_start", "interval_minutes", mins)
	go func() {
		for {
			time.Sleep(interval)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := c.SweepExpired(ctx)
			cancel()
			if err != nil {
				l.Error("sweep_error", "err", err)
				continue
			}
			metrics.SweepRemovedTotal.Add(float64(n))
			l.Info("sweep_done", "removed", n)
		}
	}()
}
