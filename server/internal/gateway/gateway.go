// Package gateway 实现客户端 WebSocket 通道：上行命令/作答/关键点帧，
// 下行会话快照。语义全部在 orchestrator/engine 内裁决，网关只做传输。
package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pose-play/server/internal/model"
	"pose-play/server/internal/orchestrator"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
)

// Gateway 维护一条 play 的客户端连接。
// 职责：
// 1. 读循环：解码 ClientMessage 并路由到 Orchestrator
// 2. 推送循环：订阅 Runner 快照并下行
// 3. 心跳：周期 ping，超时断开
type Gateway struct {
	playID string
	conn   *websocket.Conn
	orch   *orchestrator.Orchestrator
	logger *log.Logger

	pingInterval time.Duration

	writeLock sync.Mutex
	seqLock   sync.Mutex
	seq       int64

	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	completedOnce sync.Once
}

func NewGateway(playID string, conn *websocket.Conn, orch *orchestrator.Orchestrator,
	pingInterval time.Duration, logger *log.Logger) *Gateway {

	if logger == nil {
		logger = log.Default()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		playID:       playID,
		conn:         conn,
		orch:         orch,
		logger:       logger,
		pingInterval: pingInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 启动网关：先下行一帧当前快照，再开读循环/推送循环/心跳。
func (g *Gateway) Start() error {
	snapshot, err := g.orch.Get(g.playID)
	if err != nil {
		return err
	}
	updates, unsubscribe, err := g.orch.Subscribe(g.playID)
	if err != nil {
		return err
	}

	g.writeSnapshot(snapshot)

	go g.readLoop()
	go g.pushLoop(updates, unsubscribe)
	go g.pingLoop()

	g.logger.Printf("[Gateway] 🔗 连接建立: play=%s", g.playID)
	return nil
}

func (g *Gateway) readLoop() {
	defer g.Close()

	g.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	g.conn.SetPongHandler(func(string) error {
		g.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := g.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Printf("[Gateway] ⚠️  连接异常断开: play=%s error=%v", g.playID, err)
			}
			return
		}
		g.handleMessage(&msg)
	}
}

func (g *Gateway) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case "frame":
		// 高频通道：快照会随下一次归约推送，这里不回包。
		if err := g.orch.SubmitFrame(g.playID, msg.Frame); err != nil {
			g.writeError(err.Error())
		}
	case "command":
		if msg.Command == nil {
			g.writeError("command payload required")
			return
		}
		if _, err := g.orch.Dispatch(g.playID, *msg.Command); err != nil {
			g.writeError(err.Error())
		}
	case "answer":
		if _, err := g.orch.SubmitAnswer(g.ctx, g.playID, orchestrator.AnswerRequest{Answer: msg.Answer}); err != nil {
			g.writeError(err.Error())
		}
	case "ping":
		g.write(ServerMessage{Type: "pong"})
	default:
		g.writeError("unknown message type: " + msg.Type)
	}
}

func (g *Gateway) pushLoop(updates <-chan *model.Session, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-g.ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			g.writeSnapshot(s)
		}
	}
}

func (g *Gateway) pingLoop() {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.writeLock.Lock()
			err := g.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			g.writeLock.Unlock()
			if err != nil {
				g.Close()
				return
			}
		}
	}
}

func (g *Gateway) writeSnapshot(s *model.Session) {
	if s == nil {
		return
	}
	g.write(ServerMessage{Type: "snapshot", Session: s})
	if s.Completed {
		// 完成通知只发一次，之后的快照（如重开前的查询）照常下行。
		g.completedOnce.Do(func() {
			g.write(ServerMessage{Type: "completed"})
		})
	}
}

func (g *Gateway) writeError(message string) {
	g.write(ServerMessage{Type: "error", Error: message})
}

func (g *Gateway) write(msg ServerMessage) {
	g.seqLock.Lock()
	g.seq++
	msg.Seq = g.seq
	g.seqLock.Unlock()

	g.writeLock.Lock()
	defer g.writeLock.Unlock()
	g.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := g.conn.WriteJSON(msg); err != nil {
		g.logger.Printf("[Gateway] ❌ 下行失败: play=%s error=%v", g.playID, err)
	}
}

// Done 在网关关闭后关闭。
func (g *Gateway) Done() <-chan struct{} {
	return g.ctx.Done()
}

// Close 关闭连接与全部循环。play 本身继续运行，客户端可以重连。
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.cancel()
		_ = g.conn.Close()
		g.logger.Printf("[Gateway] 🔌 连接关闭: play=%s", g.playID)
	})
}
