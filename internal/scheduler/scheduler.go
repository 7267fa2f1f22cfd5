// Package scheduler 按 cron 表达式运行后台任务：趋势重算、话题窗口清零、过期清理
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

// JobFunc 单次任务，返回错误只记录不重试
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	cron    string
	run     JobFunc
	mu      sync.Mutex
	running bool
}

type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
	now  func() time.Time
	wg   sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{jobs: map[string]*job{}, now: time.Now}
}

// Add 注册任务；cron 为空表示只能手动触发
func (s *Scheduler) Add(name, cron string, fn JobFunc) error {
	if cron != "" && !gronx.IsValid(cron) {
		return fmt.Errorf("job %s: invalid cron %q", name, cron)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = &job{name: name, cron: cron, run: fn}
	return nil
}

// Start 每个带 cron 的任务一个循环，ctx 取消后退出；返回的函数等待所有循环结束
func (s *Scheduler) Start(ctx context.Context) func() {
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.cron == "" {
			continue
		}
		s.wg.Add(1)
		go func(j *job) {
			defer s.wg.Done()
			s.loop(ctx, j)
		}(j)
		logger.Info("job scheduled", zap.String("job", j.name), zap.String("cron", j.cron))
	}
	s.mu.Unlock()
	return s.wg.Wait
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	for {
		next, err := gronx.NextTickAfter(j.cron, s.now(), false)
		if err != nil {
			logger.Error("job next tick failed", zap.String("job", j.name), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.exec(ctx, j)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunNow 手动触发；同一任务正在执行时返回 false
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown job %s", name)
	}
	return s.exec(ctx, j)
}

func (s *Scheduler) exec(ctx context.Context, j *job) (bool, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		metrics.JobRuns.WithLabelValues(j.name, "skipped").Inc()
		return false, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	err := j.run(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
		logger.Error("job failed", zap.String("job", j.name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return true, err
	}
	metrics.JobRuns.WithLabelValues(j.name, "ok").Inc()
	logger.Info("job done", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
	return true, nil
}

// Jobs 已注册的任务名
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}
