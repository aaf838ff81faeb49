package projection

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/akriventsev/coursecatalog/framework/core"
)

// PoolConfig конфигурация пула обработчиков
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// DefaultPoolConfig возвращает конфигурацию по умолчанию
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 8, QueueSize: 64}
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Pool пул воркеров с привязкой к ключу: задачи с одинаковым ключом
// выполняются последовательно одним воркером, разные ключи параллельно.
type Pool struct {
	queues   []chan task
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
	next     atomic.Uint64
}

// NewPool создает и запускает пул
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	p := &Pool{
		queues: make([]chan task, config.Workers),
		stopCh: make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan task, config.QueueSize)
		p.wg.Add(1)
		go p.worker(p.queues[i])
	}
	return p
}

func (p *Pool) worker(queue chan task) {
	defer p.wg.Done()
	for {
		select {
		case t := <-queue:
			t.done <- t.fn(t.ctx)
		case <-p.stopCh:
			// Дорабатываем уже принятые задачи
			for {
				select {
				case t := <-queue:
					t.done <- t.fn(t.ctx)
				default:
					return
				}
			}
		}
	}
}

// Size возвращает количество воркеров
func (p *Pool) Size() int {
	return len(p.queues)
}

func (p *Pool) index(key string) int {
	if key == "" {
		return int(p.next.Add(1) % uint64(len(p.queues)))
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Do выполняет fn на воркере ключа key и ждет результат
func (p *Pool) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	if err := p.enqueue(ctx, key, t); err != nil {
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue ставит задачу в очередь; блокировка не дает Stop закрыть пул
// между проверкой и отправкой
func (p *Pool) enqueue(ctx context.Context, key string, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return core.NewError(core.ErrInitializationFailed, "pool is stopped")
	}
	select {
	case p.queues[p.index(key)] <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop останавливает пул после обработки принятых задач.
// Метод идемпотентен.
func (p *Pool) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.stopCh)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}
