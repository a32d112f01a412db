package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/lifecycle"
	"github.com/agrimaster/internal/notify"
	"github.com/agrimaster/internal/weather"
)

// FieldLister 提供天气刷新所需的地块列表
type FieldLister interface {
	ListFields() ([]db.Field, error)
}

// WeatherSource 是外部天气数据源，可能超时或失败
type WeatherSource interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (weather.Observation, error)
}

// SnapshotAppender 追加不可变天气快照
type SnapshotAppender interface {
	AppendSnapshot(snap *db.WeatherSnapshot) error
}

// RunReport 汇总一次任务运行的结果，用于日志与测试断言
type RunReport struct {
	Job       string
	Processed int
	Skipped   int
	Delivered int
	Failures  []string
}

func (r *RunReport) fail(format string, args ...interface{}) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Runner 是调度器触发的三类后台任务的执行体。
// 单条记录/地块的失败只记入报告，绝不中断同一批次的其余处理。
type Runner struct {
	crops      notify.CropRepository
	fields     FieldLister
	source     WeatherSource
	snapshots  SnapshotAppender
	aggregator *notify.Aggregator
	sink       notify.Sink
	clock      notify.Clock

	workers      int
	fetchTimeout time.Duration
	logger       *log.Logger
}

// RunnerOptions 汇总 Runner 的全部依赖
type RunnerOptions struct {
	Crops        notify.CropRepository
	Fields       FieldLister
	Source       WeatherSource
	Snapshots    SnapshotAppender
	Aggregator   *notify.Aggregator
	Sink         notify.Sink
	Clock        notify.Clock
	Workers      int
	FetchTimeout time.Duration
	Logger       *log.Logger
}

// NewRunner 构造任务执行体，缺省 worker 数为 4、抓取超时 5 秒
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = notify.SystemClock{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		crops:        opts.Crops,
		fields:       opts.Fields,
		source:       opts.Source,
		snapshots:    opts.Snapshots,
		aggregator:   opts.Aggregator,
		sink:         opts.Sink,
		clock:        opts.Clock,
		workers:      opts.Workers,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
	}
}

// RefreshWeather 为每个地块拉取当前天气并追加快照与告警。
// 单个地块抓取失败记日志后跳过，等下个周期再试。
func (r *Runner) RefreshWeather(ctx context.Context) RunReport {
	report := RunReport{Job: "weather_refresh"}

	fields, err := r.fields.ListFields()
	if err != nil {
		report.fail("list fields: %v", err)
		return report
	}

	var mu sync.Mutex
	r.forEach(ctx, len(fields), func(i int) {
		field := fields[i]

		fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		obs, err := r.source.FetchCurrent(fetchCtx, field.Latitude, field.Longitude)
		cancel()

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Skipped++
			report.fail("field %d fetch: %v", field.ID, err)
			return
		}

		snap := weather.BuildSnapshot(field.ID, obs, r.clock.Now())
		if err := r.snapshots.AppendSnapshot(&snap); err != nil {
			report.Skipped++
			report.fail("field %d snapshot: %v", field.ID, err)
			return
		}
		report.Processed++
	})

	return report
}

// SweepOverdueTasks 把计划日期已过却仍 pending 的任务置为 overdue。
// 状态转换单调，同一小时内重复运行得到相同结果。
func (r *Runner) SweepOverdueTasks(ctx context.Context) RunReport {
	report := RunReport{Job: "overdue_sweep"}

	records, err := r.crops.ListAll()
	if err != nil {
		report.fail("list crops: %v", err)
		return report
	}

	var mu sync.Mutex
	r.forEach(ctx, len(records), func(i int) {
		record := records[i]
		now := r.clock.Now()

		changed := lifecycle.SweepOverdue(&record, now) > 0
		if lifecycle.ApplyCurrentStage(&record, now) {
			changed = true
		}

		mu.Lock()
		defer mu.Unlock()
		if !changed {
			return
		}
		if err := r.saveSwept(&record, now); err != nil {
			report.Skipped++
			report.fail("crop %d save: %v", record.ID, err)
			return
		}
		report.Processed++
	})

	return report
}

// saveSwept 条件保存扫描结果，冲突时重取重算一次
func (r *Runner) saveSwept(record *db.CropRecord, now time.Time) error {
	err := r.crops.SaveVersioned(record)
	if err == nil || !errors.Is(err, db.ErrVersionConflict) {
		return err
	}

	fresh, err := r.crops.Get(record.ID)
	if err != nil {
		return fmt.Errorf("refetch after conflict: %w", err)
	}
	changed := lifecycle.SweepOverdue(fresh, now) > 0
	if lifecycle.ApplyCurrentStage(fresh, now) {
		changed = true
	}
	if !changed {
		return nil
	}
	return r.crops.SaveVersioned(fresh)
}

// RunDigest 执行每日通知摘要：聚合全部记录并逐条交给投递渠道。
// 投递失败只记日志，推导出的状态在投递前已经落库。
func (r *Runner) RunDigest(ctx context.Context) RunReport {
	report := RunReport{Job: "notification_digest"}

	notifications, err := r.aggregator.Digest(ctx)
	if err != nil {
		report.fail("digest: %v", err)
	}
	report.Processed = len(notifications)

	for _, n := range notifications {
		if err := r.sink.Deliver(n); err != nil {
			report.fail("deliver %s to farmer %d: %v", n.Type, n.FarmerID, err)
			continue
		}
		report.Delivered++
	}

	return report
}

// forEach 用有界并发处理 n 个互相独立的条目。
// 取消只阻止新工作启动，已在途的条目会运行完成。
func (r *Runner) forEach(ctx context.Context, n int, fn func(i int)) {
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
