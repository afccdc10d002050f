package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulselink/internal/config"
	"pulselink/internal/database"
	"pulselink/internal/hrm"
	"pulselink/internal/ingest"
	"pulselink/internal/models"
	mqttcommon "pulselink/internal/mqtt"
	"pulselink/internal/osc"
	"pulselink/internal/publisher"
	rediscommon "pulselink/internal/redis"
	"pulselink/internal/repository"
)

// BridgeService 心率桥接服务
// 将BLE测量帧与websocket文本源归一化为统一状态，
// 经OSC发射调度器输出，并可选地发布到MQTT/Redis与会话数据库
type BridgeService struct {
	config *config.Config
	logger *zap.Logger

	agg *hrm.Aggregator

	statusCh  chan models.Status // 两个数据源的汇入队列
	emitterCh chan models.Status // 发射调度器输入队列
	appCh     chan models.AppUpdate

	emitter  *osc.Emitter
	wsServer *ingest.Server

	mqttClient  *mqttcommon.Client
	redisClient *rediscommon.Client
	db          *sql.DB
	sinks       []publisher.Sink

	sessionRepo *repository.SessionRepository
	sessionID   string

	wg sync.WaitGroup
}

// NewBridgeService 创建桥接服务
func NewBridgeService(cfg *config.Config, logger *zap.Logger) (*BridgeService, error) {
	agg := hrm.NewAggregator(cfg.HRM.TwitchThreshold)

	statusCh := make(chan models.Status, 16)
	emitterCh := make(chan models.Status, 16)
	appCh := make(chan models.AppUpdate, 32)

	// 初始化OSC发射器（本地出站端口绑定失败为致命错误）
	emitter, err := osc.NewEmitter(&cfg.OSC, emitterCh, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSC emitter: %w", err)
	}

	wsServer := ingest.NewServer(&cfg.Websocket, agg, statusCh, appCh, logger)

	s := &BridgeService{
		config:    cfg,
		logger:    logger,
		agg:       agg,
		statusCh:  statusCh,
		emitterCh: emitterCh,
		appCh:     appCh,
		emitter:   emitter,
		wsServer:  wsServer,
	}

	// 初始化MQTT发布器
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.mqttClient = mqttClient
		s.sinks = append(s.sinks, publisher.NewMQTTPublisher(mqttClient, cfg.MQTT.Topic, cfg.MQTT.QoS, logger))
	}

	// 初始化Redis Streams发布器
	if cfg.Redis.Enabled {
		redisClient := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redisClient = redisClient
		s.sinks = append(s.sinks, publisher.NewStreamPublisher(redisClient, cfg.Redis.Stream, logger))
	}

	// 初始化会话记录
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.sessionRepo = repository.NewSessionRepository(db, logger)

		sessionID, err := s.sessionRepo.CreateSession(time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		s.sessionID = sessionID
	}

	return s, nil
}

// Start 启动服务
func (s *BridgeService) Start(ctx context.Context) error {
	s.logger.Info("Starting bridge service components")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.emitter.Run(ctx); err != nil {
			s.logger.Error("OSC emitter stopped with error", zap.Error(err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.wsServer.Run(ctx); err != nil {
			s.logger.Error("Websocket server stopped with error", zap.Error(err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatchLoop(ctx)
	}()

	s.logger.Info("Bridge service started successfully")
	return nil
}

// Stop 停止服务并释放资源
func (s *BridgeService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping bridge service")

	// 等待各任务完成自身清理
	s.wg.Wait()

	if s.sessionRepo != nil {
		if err := s.sessionRepo.CloseSession(s.sessionID, time.Now()); err != nil {
			s.logger.Error("Error closing session", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		rediscommon.Close(s.redisClient)
	}

	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Bridge service stopped")
	return nil
}

// HandleFrame 接收来自BLE传输层的一帧原始心率通知
// 过短的帧在此处排除，核心解码器假定输入合法
func (s *BridgeService) HandleFrame(data []byte) {
	if len(data) < 2 {
		s.logger.Warn("Dropping undersized sensor frame", zap.Int("len", len(data)))
		s.notify(models.Transient("Dropped undersized sensor frame",
			fmt.Sprintf("%d bytes", len(data))))
		return
	}

	m := hrm.ParseMeasurement(data)
	status := s.agg.ApplyMeasurement(m)

	select {
	case s.statusCh <- status:
	default:
		s.logger.Debug("Status queue full, dropping update")
	}
}

// Updates 返回界面层更新通道（状态与通知）
func (s *BridgeService) Updates() <-chan models.AppUpdate {
	return s.appCh
}

// dispatchLoop 将汇入的状态分发给发射调度器、界面层与各下游接收端
// last-value-wins：不保证每条更新都在下一条到达前送达
func (s *BridgeService) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case status := <-s.statusCh:
			s.dispatch(ctx, status)
		}
	}
}

func (s *BridgeService) dispatch(ctx context.Context, status models.Status) {
	select {
	case s.emitterCh <- status:
	default:
		s.logger.Debug("Emitter queue full, dropping update")
	}

	st := status
	select {
	case s.appCh <- models.AppUpdate{Status: &st}:
	default:
	}

	for _, sink := range s.sinks {
		if err := sink.PublishStatus(ctx, status); err != nil {
			s.logger.Warn("Failed to publish status",
				zap.String("sink", sink.Name()),
				zap.Error(err),
			)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.InsertSample(s.sessionID, time.Now(), status); err != nil {
			s.logger.Warn("Failed to record session sample", zap.Error(err))
		}
	}
}

func (s *BridgeService) notify(n models.Notice) {
	nn := n
	select {
	case s.appCh <- models.AppUpdate{Notice: &nn}:
	default:
	}
}
