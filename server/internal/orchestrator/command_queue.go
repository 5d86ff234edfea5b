package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pose-play/server/internal/model"
)

// CommandHandler 处理一条已出队的命令。
type CommandHandler func(ctx context.Context, cmd model.Command) error

// CommandQueue 为单个 play 提供串行命令处理（Actor Model）。
// 解决问题：
// 1. 防止会话快照并发修改导致的数据竞态
// 2. 保证命令处理顺序，避免 TICK 和 POSE_MATCH_SCORES 乱序
type CommandQueue struct {
	playID  string
	handler CommandHandler
	cmdChan chan *queuedCommand
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Logger

	// 统计信息
	mu                sync.Mutex
	totalCommands     int64
	processedCommands int64
	droppedCommands   int64
}

type queuedCommand struct {
	cmd       model.Command
	timestamp time.Time
	resultCh  chan error // 用于同步等待结果（可选）
}

const (
	// 队列容量：超过此值的命令将被丢弃（背压控制）
	defaultQueueCapacity = 256
	// 命令处理超时
	defaultCommandTimeout = 5 * time.Second
)

// NewCommandQueue 创建命令队列并启动单线程处理器。
func NewCommandQueue(playID string, handler CommandHandler, logger *log.Logger) *CommandQueue {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &CommandQueue{
		playID:  playID,
		handler: handler,
		cmdChan: make(chan *queuedCommand, defaultQueueCapacity),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	q.wg.Add(1)
	go q.processLoop()

	return q
}

// Enqueue 将命令加入队列（异步，非阻塞）。
func (q *CommandQueue) Enqueue(cmd model.Command) error {
	select {
	case <-q.ctx.Done():
		return fmt.Errorf("command queue closed")
	default:
	}

	item := &queuedCommand{cmd: cmd, timestamp: time.Now()}

	select {
	case q.cmdChan <- item:
		q.mu.Lock()
		q.totalCommands++
		q.mu.Unlock()
		return nil
	default:
		// 队列已满，丢弃命令（背压控制）。TICK 丢一帧无伤大雅，
		// 丢其他命令要留下日志。
		q.mu.Lock()
		q.droppedCommands++
		q.mu.Unlock()
		if cmd.Type != model.CmdTick {
			q.logger.Printf("[CommandQueue] ⚠️  Queue full, dropping command: type=%s play=%s", cmd.Type, q.playID)
		}
		return fmt.Errorf("command queue full")
	}
}

// EnqueueSync 将命令加入队列并等待处理完成（同步）。
// REST 入口用它保证响应里读到的快照已包含本次命令的结果。
func (q *CommandQueue) EnqueueSync(cmd model.Command, timeout time.Duration) error {
	select {
	case <-q.ctx.Done():
		return fmt.Errorf("command queue closed")
	default:
	}

	if timeout == 0 {
		timeout = defaultCommandTimeout
	}

	item := &queuedCommand{
		cmd:       cmd,
		timestamp: time.Now(),
		resultCh:  make(chan error, 1),
	}

	select {
	case q.cmdChan <- item:
		q.mu.Lock()
		q.totalCommands++
		q.mu.Unlock()
	case <-time.After(timeout):
		return fmt.Errorf("timeout enqueuing command")
	case <-q.ctx.Done():
		return fmt.Errorf("command queue closed")
	}

	select {
	case err := <-item.resultCh:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for command processing")
	case <-q.ctx.Done():
		return fmt.Errorf("command queue closed")
	}
}

// processLoop 串行处理命令（单线程）。
func (q *CommandQueue) processLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case item := <-q.cmdChan:
			q.processCommand(item)
		}
	}
}

func (q *CommandQueue) processCommand(item *queuedCommand) {
	ctx, cancel := context.WithTimeout(q.ctx, defaultCommandTimeout)
	defer cancel()

	err := q.handler(ctx, item.cmd)
	if err != nil {
		q.logger.Printf("[CommandQueue] ❌ Command failed: type=%s play=%s error=%v",
			item.cmd.Type, q.playID, err)
	}

	q.mu.Lock()
	q.processedCommands++
	q.mu.Unlock()

	if item.resultCh != nil {
		select {
		case item.resultCh <- err:
		default:
		}
	}
}

// Close 关闭命令队列并等待处理器退出。
func (q *CommandQueue) Close() error {
	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	total := q.totalCommands
	processed := q.processedCommands
	dropped := q.droppedCommands
	q.mu.Unlock()

	q.logger.Printf("[CommandQueue] Closed for play %s: total=%d processed=%d dropped=%d pending=%d",
		q.playID, total, processed, dropped, len(q.cmdChan))

	return nil
}

// GetStats 获取队列统计信息。
func (q *CommandQueue) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	return map[string]interface{}{
		"play_id":            q.playID,
		"total_commands":     q.totalCommands,
		"processed_commands": q.processedCommands,
		"dropped_commands":   q.droppedCommands,
		"pending_commands":   len(q.cmdChan),
		"queue_capacity":     cap(q.cmdChan),
	}
}
