package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pose-play/server/internal/config"
	"pose-play/server/internal/domain"
	"pose-play/server/internal/gateway"
	"pose-play/server/internal/model"
	"pose-play/server/internal/orchestrator"
)

type Server struct {
	config  *config.Config
	library *domain.Library
	orch    *orchestrator.Orchestrator
	logger  *log.Logger

	// WebSocket upgrader
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, library *domain.Library, orch *orchestrator.Orchestrator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	allowed := map[string]bool{}
	for _, origin := range cfg.Gateway.AllowedOrigins {
		allowed[origin] = true
	}

	return &Server{
		config:  cfg,
		library: library,
		orch:    orch,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 开发期允许本地跨域，生产环境应配置白名单
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 {
					return origin == "http://localhost:5173" || origin == "http://127.0.0.1:5173"
				}
				return allowed[origin]
			},
		},
	}
}

func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由，便于扩展日志/鉴权/限流等能力。
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/games", s.handleGames)
	engine.POST("/api/plays", s.handleCreatePlay)
	engine.GET("/api/plays/:id", s.handleGetPlay)
	engine.POST("/api/plays/:id/commands", s.handleCommand)
	engine.POST("/api/plays/:id/answers", s.handleAnswer)
	engine.GET("/api/plays/:id/telemetry", s.handleTelemetry)
	engine.GET("/api/plays/:id/frames", s.handleFrames)
	engine.DELETE("/api/plays/:id", s.handleClosePlay)
	engine.GET("/api/plays/:id/stream", s.handleStream)
	return engine
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type gameSummary struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Levels []levelSummary `json:"levels"`
}

type levelSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// handleGames 返回全部可玩的游戏与关卡摘要。
// 不下发姿势帧等大块内容，客户端创建 play 后从快照拿所需数据。
func (s *Server) handleGames(c *gin.Context) {
	games := s.library.Games()
	out := make([]gameSummary, 0, len(games))
	for _, g := range games {
		summary := gameSummary{ID: g.ID, Title: g.Title}
		for _, level := range g.Levels {
			summary.Levels = append(summary.Levels, levelSummary{ID: level.ID, Title: level.Title})
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, out)
}

// handleCreatePlay 处理 /api/plays，创建一次关卡游玩。
func (s *Server) handleCreatePlay(c *gin.Context) {
	var req orchestrator.CreatePlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.GameID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_id required"})
		return
	}

	snapshot, err := s.orch.CreatePlay(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleGetPlay 返回最新会话快照。
func (s *Server) handleGetPlay(c *gin.Context) {
	snapshot, err := s.orch.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleCommand 同步派发一条客户端命令并返回处理后的快照。
func (s *Server) handleCommand(c *gin.Context) {
	var cmd model.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if cmd.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type required"})
		return
	}

	snapshot, err := s.orch.Dispatch(c.Param("id"), cmd)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleAnswer 处理 INTUITION/INSIGHT 作答。
func (s *Server) handleAnswer(c *gin.Context) {
	var req orchestrator.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	snapshot, err := s.orch.SubmitAnswer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleTelemetry 返回某个 play 的全量遥测流（按 seq 顺序）。
func (s *Server) handleTelemetry(c *gin.Context) {
	events, err := s.orch.Telemetry(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// handleFrames 返回录制器采样的姿势帧。
func (s *Server) handleFrames(c *gin.Context) {
	frames, err := s.orch.RecordedFrames(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, frames)
}

// handleClosePlay 结束一次游玩并清理会话，遥测保留。
func (s *Server) handleClosePlay(c *gin.Context) {
	if err := s.orch.ClosePlay(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// handleStream 升级为 WebSocket，建立快照推送 + 命令/帧上行的双向通道。
func (s *Server) handleStream(c *gin.Context) {
	playID := c.Param("id")
	if _, err := s.orch.Get(playID); err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("[API] ❌ WebSocket 升级失败: play=%s error=%v", playID, err)
		return
	}

	gw := gateway.NewGateway(playID, conn, s.orch, s.config.Gateway.PingInterval, s.logger)
	if err := gw.Start(); err != nil {
		s.logger.Printf("[API] ❌ 网关启动失败: play=%s error=%v", playID, err)
		_ = conn.Close()
		return
	}
}

// writeError 把编排层的哨兵错误映射到 HTTP 状态码。
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrPlayNotFound),
		errors.Is(err, orchestrator.ErrUnknownGame),
		errors.Is(err, orchestrator.ErrUnknownLevel):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrCommandNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrNotAwaitingAnswer):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
