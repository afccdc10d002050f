package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulselink/internal/models"
)

// SessionRepository 心率会话时序数据仓库
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository 创建会话数据仓库
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSession 创建一条会话记录并返回会话ID
func (r *SessionRepository) CreateSession(startedAt time.Time) (string, error) {
	sessionID := uuid.New().String()

	query := `INSERT INTO hr_sessions (session_id, started_at) VALUES ($1, $2)`
	if _, err := r.db.Exec(query, sessionID, startedAt); err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	r.logger.Info("Created heart rate session", zap.String("session_id", sessionID))
	return sessionID, nil
}

// InsertSample 写入一条状态样本
func (r *SessionRepository) InsertSample(sessionID string, timestamp time.Time, status models.Status) error {
	var latestRRMs sql.NullInt64
	if rr, ok := status.LatestRR(); ok {
		latestRRMs = sql.NullInt64{Int64: rr.Milliseconds(), Valid: true}
	}

	var battery sql.NullInt64
	if status.Battery.State == models.BatteryReported {
		battery = sql.NullInt64{Int64: int64(status.Battery.Percent), Valid: true}
	}

	query := `
		INSERT INTO hr_samples (session_id, timestamp, bpm, latest_rr_ms, battery, twitch_up, twitch_down)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(query, sessionID, timestamp, status.BPM, latestRRMs, battery, status.TwitchUp, status.TwitchDown)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	return nil
}

// CloseSession 标记会话结束时间
func (r *SessionRepository) CloseSession(sessionID string, endedAt time.Time) error {
	query := `UPDATE hr_sessions SET ended_at = $1 WHERE session_id = $2`
	if _, err := r.db.Exec(query, endedAt, sessionID); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	return nil
}
