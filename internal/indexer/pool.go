package indexer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stritefax2/heelixnotes/internal/models"
	"go.uber.org/zap"
)

const lockStripes = 64

type job struct {
	id         string
	documentID int64
}

// workerPool runs vectorization jobs on a fixed number of goroutines fed by an
// in-memory FIFO. Submitting never blocks; a document already waiting in the
// queue is not queued twice.
type workerPool struct {
	run func(ctx context.Context, j *job) models.JobResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	work     *sync.Cond
	idle     *sync.Cond
	queue    []*job
	queued   map[int64]*job
	closed   bool
	stopping bool
	pending  int
	backlog  int

	subMu    sync.Mutex
	subs     map[int]chan models.JobResult
	nextSub  int
	onResult []func(models.JobResult)
	logger   *zap.Logger
}

// newWorkerPool starts workers goroutines. backlog is the queue length above
// which submissions are logged as a warning.
func newWorkerPool(workers, backlog int, run func(context.Context, *job) models.JobResult, logger *zap.Logger) *workerPool {
	if workers <= 0 {
		workers = 2
	}
	if backlog <= 0 {
		backlog = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make([]*job, 0, backlog),
		queued:  make(map[int64]*job),
		backlog: backlog,
		subs:    make(map[int]chan models.JobResult),
		logger:  logger,
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		j, ok := p.next()
		if !ok {
			return
		}
		res := p.run(p.ctx, j)
		p.publish(res)
		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// next pops the oldest job, waiting for one. It reports false once the pool is stopping.
func (p *workerPool) next() (*job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.stopping {
		p.work.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	j := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	delete(p.queued, j.documentID)
	return j, true
}

// submit queues a job for documentID and returns its ID without waiting for
// capacity. When the document is already waiting, the waiting job's ID is
// returned. After close the job fails immediately with ErrIndexerClosed.
func (p *workerPool) submit(documentID int64) string {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		id := uuid.New().String()
		p.publish(models.JobResult{JobID: id, DocumentID: documentID, Err: ErrIndexerClosed})
		return id
	}
	if j, ok := p.queued[documentID]; ok {
		p.mu.Unlock()
		return j.id
	}
	j := &job{id: uuid.New().String(), documentID: documentID}
	p.queue = append(p.queue, j)
	p.queued[documentID] = j
	p.pending++
	depth := len(p.queue)
	p.work.Signal()
	p.mu.Unlock()

	if depth > p.backlog {
		p.logger.Warn("vectorization backlog above limit",
			zap.Int("queued", depth), zap.Int("limit", p.backlog))
	}
	return j.id
}

// queueLen returns the number of jobs waiting to start.
func (p *workerPool) queueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// wait blocks until every submitted job has finished.
func (p *workerPool) wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// close rejects new jobs, drains the queue and stops the workers.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.stopping = true
	p.work.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.subMu.Lock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.subMu.Unlock()
}

func (p *workerPool) subscribe(buffer int) (<-chan models.JobResult, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.JobResult, buffer)
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			if c, ok := p.subs[id]; ok {
				close(c)
				delete(p.subs, id)
			}
			p.subMu.Unlock()
		})
	}
}

// publish delivers a result to callbacks and subscribers. Slow subscribers miss results.
func (p *workerPool) publish(res models.JobResult) {
	for _, fn := range p.onResult {
		fn(res)
	}
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- res:
		default:
			p.logger.Debug("dropping job result for slow subscriber", zap.String("job_id", res.JobID))
		}
	}
}

// stripedLocks serialises mutations of one document against its background task.
type stripedLocks [lockStripes]sync.Mutex

func (s *stripedLocks) lock(documentID int64) func() {
	m := &s[uint64(documentID)%lockStripes]
	m.Lock()
	return m.Unlock
}

// lockAll takes every stripe in order, for project-wide changes.
func (s *stripedLocks) lockAll() func() {
	for i := range s {
		s[i].Lock()
	}
	return func() {
		for i := len(s) - 1; i >= 0; i-- {
			s[i].Unlock()
		}
	}
}
