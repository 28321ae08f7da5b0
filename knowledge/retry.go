package knowledge

import (
	"log"
	"sync"
	"time"
)

// writeOp отложенная запись подтверждения
type writeOp struct {
	conf     Confirmation
	attempts int
}

// retryQueue ограниченная очередь повторных попыток записи.
// Единственный фоновый воркер переигрывает отказавшие записи с фиксированным
// интервалом; операция после исчерпания попыток переносится в список
// неразрешенных записей
type retryQueue struct {
	kb     *KnowledgeBase
	config *Config

	ops  chan writeOp
	done chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	dead []Confirmation
}

func newRetryQueue(kb *KnowledgeBase, config *Config) *retryQueue {
	q := &retryQueue{
		kb:     kb,
		config: config,
		ops:    make(chan writeOp, config.RetryQueueCap),
		done:   make(chan struct{}),
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// enqueue добавляет операцию в очередь; при переполнении операция
// переносится в список неразрешенных
func (q *retryQueue) enqueue(op writeOp) {
	select {
	case q.ops <- op:
	default:
		log.Printf("[KnowledgeBase] Retry queue full, giving up on write for %q", op.conf.OriginalHeader)
		q.recordUnresolved(op.conf)
	}
}

// size возвращает текущую длину очереди
func (q *retryQueue) size() int {
	return len(q.ops)
}

// recordUnresolved сохраняет запись, которую не удалось выполнить.
// Список ограничен емкостью очереди: при переполнении вытесняется старейшая
func (q *retryQueue) recordUnresolved(conf Confirmation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.dead) >= q.config.RetryQueueCap {
		q.dead = q.dead[1:]
	}
	q.dead = append(q.dead, conf)
}

// unresolved возвращает копию списка неразрешенных записей
func (q *retryQueue) unresolved() []Confirmation {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]Confirmation, len(q.dead))
	copy(result, q.dead)
	return result
}

// stop останавливает воркер и дожидается его завершения
func (q *retryQueue) stop() {
	close(q.done)
	q.wg.Wait()
}

// worker переигрывает отложенные записи с интервалом между попытками
func (q *retryQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.drainOne()
		}
	}
}

// drainOne пытается выполнить одну отложенную запись
func (q *retryQueue) drainOne() {
	select {
	case op := <-q.ops:
		if err := q.kb.writeConfirmation(op.conf); err != nil {
			op.attempts++
			if op.attempts >= q.config.RetryMaxAttempts {
				log.Printf("[KnowledgeBase] Giving up on write for %q after %d attempts: %v",
					op.conf.OriginalHeader, op.attempts, err)
				q.recordUnresolved(op.conf)
				return
			}
			q.enqueue(op)
			return
		}
		log.Printf("[KnowledgeBase] Deferred write for %q succeeded", op.conf.OriginalHeader)
	default:
	}
}
