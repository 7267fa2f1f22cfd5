package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

type dispatchJob struct {
	ev    NotifyEvent
	enqAt time.Time
}

// AsyncNotifier 本地异步通知投递：有界队列 + 固定 worker，队列满直接丢弃。
// 停机后不再入队，改为在调用方同步投递
type AsyncNotifier struct {
	sender Notifier
	ch     chan dispatchJob
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewAsyncNotifier(sender Notifier, queueSize int) *AsyncNotifier {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &AsyncNotifier{sender: sender, ch: make(chan dispatchJob, queueSize)}
}

// Start 启动 worker，返回的函数用于停机：停止接收并在期限内排空队列
func (d *AsyncNotifier) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				case <-stopCh:
					// 退出前把剩余任务处理完
					for {
						select {
						case job := <-d.ch:
							d.deliver(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			d.mu.Lock()
			d.stopped = true
			d.mu.Unlock()
			close(stopCh)
		})
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			logger.Warn("notification queue not drained", zap.Int("pending", len(d.ch)))
			return ctx.Err()
		}
	}
}

func (d *AsyncNotifier) deliver(job dispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	d.sender.Notify(ctx, job.ev)
	cancel()
	metrics.NotificationLag.Observe(time.Since(job.enqAt).Seconds())
	metrics.NotificationQueue.Set(float64(len(d.ch)))
}

// Notify 入队即返回，不等待写库
func (d *AsyncNotifier) Notify(ctx context.Context, ev NotifyEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		logger.Warn("notification dispatcher stopped, deliver inline",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.RecipientID))
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		d.sender.Notify(sctx, ev)
		cancel()
		return
	}
	select {
	case d.ch <- dispatchJob{ev: ev, enqAt: time.Now()}:
	default:
		metrics.NotificationsSent.WithLabelValues(string(ev.Type), "dropped").Inc()
		logger.Warn("notification queue full, drop",
			zap.String("type", string(ev.Type)),
			zap.String("recipient", ev.RecipientID))
	}
}

// QueueLen 当前队列长度（采样值）
func (d *AsyncNotifier) QueueLen() int { return len(d.ch) }
