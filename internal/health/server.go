package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot 采样循环的运行状态快照
type Snapshot struct {
	State        string    `json:"state"`
	Ticks        uint64    `json:"ticks"`
	TablesBuilt  uint64    `json:"tables_built"`
	TableSize    int       `json:"table_size"`
	LastTickEnd  time.Time `json:"last_tick_end"`
	ItemsWritten uint64    `json:"items_written"`
}

// SnapshotFunc 返回当前状态快照
type SnapshotFunc func() Snapshot

// Server 健康检查服务器
type Server struct {
	snapshot SnapshotFunc
	clock    clockwork.Clock
	logger   *zap.Logger
	server   *http.Server
	mu       sync.RWMutex // 保护 ready 和 shutdown 状态
	ready    bool
	shutdown bool
}

// NewServer 创建新的健康检查服务器
func NewServer(port int, snapshot SnapshotFunc, clock clockwork.Clock, logger *zap.Logger) *Server {
	s := &Server{
		snapshot: snapshot,
		clock:    clock,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}

	return s
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	return mux
}

// Start 启动健康检查服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动健康检查服务器",
		zap.String("地址", s.server.Addr),
		zap.Strings("端点", []string{"/health", "/ready"}))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("健康检查服务器启动失败", zap.Error(err))
		return err
	}
	return nil
}

// Shutdown 关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("正在关闭健康检查服务器")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("关闭健康检查服务器失败", zap.Error(err))
		return err
	}
	s.logger.Info("健康检查服务器已关闭")
	return nil
}

// healthHandler 健康检查处理器
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	}
	if s.snapshot != nil {
		status["sampler"] = s.snapshot()
	}

	json.NewEncoder(w).Encode(status)
}

// readyHandler 就绪检查处理器
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	shutdown := s.shutdown
	ready := s.ready
	s.mu.RUnlock()

	if shutdown {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("shutting down"))
		return
	}
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}

	// 第一张采样表构建完成前不接流量
	if s.snapshot != nil && s.snapshot().TablesBuilt == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready: no sampling table"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// SetReady 设置服务就绪状态
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetShutdown 设置关闭状态
func (s *Server) SetShutdown(shutdown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = shutdown
}
