package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pulselink/internal/config"
	"pulselink/internal/hrm"
	"pulselink/internal/models"
)

// Server 文本源接入端
// 在固定端口上接受websocket连接，一次只服务一个客户端，
// 将逐条JSON心率记录折叠进状态聚合器并转发结果
type Server struct {
	cfg       *config.WebsocketConfig
	agg       *hrm.Aggregator
	statusOut chan<- models.Status
	appOut    chan<- models.AppUpdate
	logger    *zap.Logger

	upgrader websocket.Upgrader
	active   atomic.Bool
}

// NewServer 创建文本源接入端
func NewServer(
	cfg *config.WebsocketConfig,
	agg *hrm.Aggregator,
	statusOut chan<- models.Status,
	appOut chan<- models.AppUpdate,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		agg:       agg,
		statusOut: statusOut,
		appOut:    appOut,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run 运行监听循环直到取消
// 监听端口绑定失败视为致命错误，通过通知上报后退出
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.notify(models.MustDismiss("Failed to bind websocket listener", err.Error()))
		return fmt.Errorf("failed to bind websocket listener: %w", err)
	}

	s.logger.Info("Websocket listener started", zap.String("addr", ln.Addr().String()))

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.handleConn(ctx, w, r)
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down websocket listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.notify(models.MustDismiss("Websocket server error", err.Error()))
			return fmt.Errorf("websocket server error: %w", err)
		}
		return nil
	}
}

// handleConn 处理一次入站连接：握手后进入接收循环
// 已有活动连接时直接拒绝后来者
func (s *Server) handleConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !s.active.CompareAndSwap(false, true) {
		http.Error(w, "already serving a client", http.StatusConflict)
		return
	}
	defer s.active.Store(false)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// 握手失败：上报后回到监听，连接丢弃
		s.logger.Error("Handshake failed", zap.Error(err))
		s.notify(models.MustDismiss("Handshake failed", err.Error()))
		return
	}
	defer conn.Close()

	s.logger.Info("Websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	// 取消时主动关闭连接以打断读等待
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	s.receiveLoop(ctx, conn)
}

// receiveLoop 逐条处理帧消息
// 单条坏消息不断开连接；传输错误或对端关闭时退出回到监听
func (s *Server) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Shutting down websocket session")
				return
			}
			s.logger.Info("Websocket client disconnected", zap.Error(err))
			s.notify(models.Transient("Websocket client disconnected", err.Error()))
			return
		}

		if msgType != websocket.TextMessage {
			s.logger.Error("Invalid message type", zap.Int("type", msgType))
			s.notify(models.MustDismiss("Invalid message type (expected text)",
				fmt.Sprintf("message type %d", msgType)))
			continue
		}

		var update models.TextUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			s.logger.Error("Invalid heart rate message", zap.ByteString("raw", data), zap.Error(err))
			s.notify(models.Transient("Invalid heart rate message", string(data)))
			continue
		}

		status := s.agg.ApplyTextUpdate(update)
		s.forward(status)
	}
}

// forward 将折叠后的状态推入状态队列，由分发循环送达调度器与界面层
// last-value-wins：消费端滞后时允许丢弃旧值
func (s *Server) forward(status models.Status) {
	select {
	case s.statusOut <- status:
	default:
		s.logger.Debug("Status queue full, dropping update")
	}
}

func (s *Server) notify(n models.Notice) {
	nn := n
	select {
	case s.appOut <- models.AppUpdate{Notice: &nn}:
	default:
	}
}
