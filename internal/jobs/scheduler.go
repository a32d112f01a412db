package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job 是一个按固定间隔触发的后台任务
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) RunReport
}

// Scheduler 为每个任务维护独立的定时器。
// 任务之间没有顺序保证，互不等待；同一任务的上一轮运行完才会进入下一轮。
type Scheduler struct {
	jobs   []Job
	logger *log.Logger
	wg     sync.WaitGroup
}

// NewScheduler 构造调度器
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{logger: logger}
}

// Add 注册一个定时任务
func (s *Scheduler) Add(name string, every time.Duration, run func(ctx context.Context) RunReport) {
	s.jobs = append(s.jobs, Job{Name: name, Every: every, Run: run})
}

// Start 为每个任务启动独立的定时循环，ctx 取消后不再开始新的一轮
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait 阻塞直到所有任务循环退出
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	s.logger.Printf("[jobs] %s scheduled every %s", job.Name, job.Every)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("[jobs] %s stopped", job.Name)
			return
		case <-ticker.C:
			report := job.Run(ctx)
			s.logReport(report)
		}
	}
}

func (s *Scheduler) logReport(report RunReport) {
	s.logger.Printf("[jobs] %s processed=%d skipped=%d delivered=%d",
		report.Job, report.Processed, report.Skipped, report.Delivered)
	for _, f := range report.Failures {
		s.logger.Printf("[jobs] %s failure: %s", report.Job, f)
	}
}
