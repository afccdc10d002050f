package osc

import (
	"context"
	"fmt"
	"time"

	gosc "github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"

	"pulselink/internal/config"
	"pulselink/internal/models"
)

// SessionState 发射会话状态
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
	StateMimicking
	StateShuttingDown
)

// 拟态模式下重发缓存状态的固定节奏
const mimicInterval = 7 * time.Second

// Sender 出站OSC数据包发送接口
type Sender interface {
	Send(packet gosc.Packet) error
}

// Emitter 出站发射调度器
// 消费状态队列并向目标地址发送OSC数据包：每次状态更新立即发送
// 一个状态Bundle，另有独立的心跳脉冲定时器按最近RR间期发送
// beat-toggle / beat-pulse 参数
type Emitter struct {
	cfg    *config.OSCConfig
	addrs  Addresses
	sender Sender
	logger *zap.Logger

	updates <-chan models.Status

	state       SessionState
	status      models.Status
	toggleBeat  bool
	useRealRR   bool // 一旦观测到真实RR间期，不再由BPM推导
	latestRR    time.Duration
	pulseLength time.Duration
}

// NewEmitter 创建发射调度器
// 本地出站端口绑定失败视为致命错误，会话不会建立
func NewEmitter(cfg *config.OSCConfig, updates <-chan models.Status, logger *zap.Logger) (*Emitter, error) {
	client := gosc.NewClient(cfg.TargetIP, cfg.Port)
	if err := client.SetLocalAddr("0.0.0.0", 0); err != nil {
		return nil, fmt.Errorf("failed to bind local OSC socket: %w", err)
	}
	return newEmitter(cfg, updates, client, logger), nil
}

func newEmitter(cfg *config.OSCConfig, updates <-chan models.Status, sender Sender, logger *zap.Logger) *Emitter {
	return &Emitter{
		cfg:         cfg,
		addrs:       NewAddresses(cfg),
		sender:      sender,
		logger:      logger,
		updates:     updates,
		state:       StateIdle,
		toggleBeat:  true,
		latestRR:    time.Second,
		pulseLength: time.Duration(cfg.PulseLengthMs) * time.Millisecond,
	}
}

// State 返回当前会话状态
func (e *Emitter) State() SessionState {
	return e.state
}

// Run 运行发射循环直到取消
// 取消时发送一个复位Bundle（零BPM、断连）和两个beat关闭包后退出
func (e *Emitter) Run(ctx context.Context) error {
	// 初始复位，让接收端回到已知状态
	e.sendBundle(models.Status{})
	e.sendBeatParam(e.addrs.BeatToggle, false)
	e.sendBeatParam(e.addrs.BeatPulse, false)

	beatTimer := time.NewTimer(e.latestRR)
	defer beatTimer.Stop()

	mimicTicker := time.NewTicker(mimicInterval)
	defer mimicTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case status, ok := <-e.updates:
			if !ok {
				// 上游通道关闭，所有发送端已退出
				e.logger.Error("Status channel closed, stopping emitter")
				e.shutdown()
				return nil
			}
			e.handleUpdate(status)

		case <-beatTimer.C:
			e.handleBeat(ctx)
			beatTimer.Reset(e.nextBeatDelay())

		case <-mimicTicker.C:
			if e.state == StateMimicking && e.status.BPM > 0 {
				e.sendBundle(e.mimicStatus())
			}
		}
	}
}

// handleUpdate 折叠一条状态更新并立即发送状态Bundle
func (e *Emitter) handleUpdate(status models.Status) {
	if status.BPM > 0 {
		e.status = status
		if rr, ok := status.LatestRR(); ok {
			e.latestRR = rr
			e.useRealRR = true
		} else if !e.useRealRR {
			e.latestRR = rrFromBPM(status.BPM)
		}
		e.state = StateActive // 同时取消拟态
		e.sendBundle(status)
		return
	}

	if e.cfg.HideDisconnections {
		// 保留缓存的非零状态，由拟态定时器继续发送
		e.state = StateMimicking
		return
	}

	e.status = status
	e.state = StateIdle
	e.sendBundle(status)
}

// handleBeat 发送一次心跳脉冲：toggle翻转、pulse抬起保持脉冲时长后落下
func (e *Emitter) handleBeat(ctx context.Context) {
	if e.status.BPM == 0 {
		return
	}

	e.sendBeatParam(e.addrs.BeatToggle, e.toggleBeat)
	e.sendBeatParam(e.addrs.BeatPulse, true)

	select {
	case <-time.After(e.pulseLength):
	case <-ctx.Done():
		// 取消优先，脉冲提前落下
	}

	e.sendBeatParam(e.addrs.BeatPulse, false)
	e.toggleBeat = !e.toggleBeat
}

// nextBeatDelay 下一次心跳的等待时长：当前周期减去脉冲时长，下限为零
func (e *Emitter) nextBeatDelay() time.Duration {
	if e.status.BPM == 0 {
		return e.latestRR
	}
	next := e.latestRR - e.pulseLength
	if next < 0 {
		next = 0
	}
	return next
}

// mimicStatus 由最近一次非零状态派生拟态读数
// 抖动目前固定为零
func (e *Emitter) mimicStatus() models.Status {
	mimic := e.status
	var jitter uint16
	mimic.BPM += jitter
	return mimic
}

func (e *Emitter) shutdown() {
	e.state = StateShuttingDown
	e.logger.Info("Shutting down OSC emitter")
	e.sendBundle(models.Status{})
	e.sendBeatParam(e.addrs.BeatToggle, false)
	e.sendBeatParam(e.addrs.BeatPulse, false)
}

// sendBundle 发送状态Bundle，发送失败仅记录不重试
func (e *Emitter) sendBundle(status models.Status) {
	bundle := formBundle(&status, e.addrs, e.cfg.OnlyPositiveFloatHR)
	if err := e.sender.Send(bundle); err != nil {
		e.logger.Warn("Failed to send OSC bundle", zap.Error(err))
	}
}

// sendBeatParam 发送单个布尔心跳参数
func (e *Emitter) sendBeatParam(address string, on bool) {
	msg := gosc.NewMessage(address)
	msg.Append(on)
	if err := e.sender.Send(msg); err != nil {
		e.logger.Warn("Failed to send OSC beat param",
			zap.String("address", address),
			zap.Error(err),
		)
	}
}

// formBundle 组装状态Bundle：整数BPM、映射后的浮点BPM、
// 连接标志（BPM>0）和最近RR间期毫秒数（无间期或断连时为0）
func formBundle(status *models.Status, addrs Addresses, onlyPositiveFloat bool) *gosc.Bundle {
	bundle := gosc.NewBundle(time.Now())

	latestRRMs := int32(0)
	if status.BPM > 0 {
		if rr, ok := status.LatestRR(); ok {
			latestRRMs = int32(rr.Milliseconds())
		}
	}

	rrMsg := gosc.NewMessage(addrs.LatestRR)
	rrMsg.Append(latestRRMs)
	bundle.Append(rrMsg)

	intMsg := gosc.NewMessage(addrs.IntHR)
	intMsg.Append(int32(status.BPM))
	bundle.Append(intMsg)

	floatMsg := gosc.NewMessage(addrs.FloatHR)
	floatMsg.Append(floatHR(status.BPM, onlyPositiveFloat))
	bundle.Append(floatMsg)

	connMsg := gosc.NewMessage(addrs.Connected)
	connMsg.Append(status.BPM > 0)
	bundle.Append(connMsg)

	return bundle
}

// floatHR 将整数BPM线性映射到浮点输出区间
// 默认映射到 [-1,1]，only-positive 时映射到 [0,1]
func floatHR(bpm uint16, onlyPositive bool) float32 {
	f := float32(bpm) / 255.0
	if onlyPositive {
		return f
	}
	return f*2.0 - 1.0
}

// rrFromBPM 由BPM推导RR间期
// 仅在从未观测到真实RR间期时（或拟态时）作为后备
func rrFromBPM(bpm uint16) time.Duration {
	return time.Duration(60.0 / float64(bpm) * float64(time.Second))
}
