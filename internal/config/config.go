package config

import (
	"fmt"
	"os"
)

// OSCConfig OSC出站配置
type OSCConfig struct {
	TargetIP            string
	Port                int
	PulseLengthMs       int
	OnlyPositiveFloatHR bool
	HideDisconnections  bool // 断连时以拟态数据继续发送，避免接收端显示空白
	AddressPrefix       string

	// 参数路径名，与前缀拼接后构成完整OSC地址
	ParamConnected  string
	ParamBeatToggle string
	ParamBeatPulse  string
	ParamBPMInt     string
	ParamBPMFloat   string
	ParamLatestRR   string
}

// WebsocketConfig 文本源监听配置
type WebsocketConfig struct {
	Port int
}

// MQTTConfig MQTT发布配置
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// RedisConfig Redis Streams发布配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

// DatabaseConfig 会话记录数据库配置
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config 服务配置
type Config struct {
	OSC       OSCConfig
	Websocket WebsocketConfig
	MQTT      MQTTConfig
	Redis     RedisConfig
	Database  DatabaseConfig

	// 心率处理配置
	HRM struct {
		TwitchThreshold float64 // RR间期突变阈值比例
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（带默认值）
	cfg.OSC.TargetIP = getEnv("OSC_TARGET_IP", "127.0.0.1")
	cfg.OSC.Port = getEnvInt("OSC_PORT", 9000)
	cfg.OSC.PulseLengthMs = getEnvInt("OSC_PULSE_LENGTH_MS", 100)
	cfg.OSC.OnlyPositiveFloatHR = getEnvBool("OSC_ONLY_POSITIVE_FLOATHR", false)
	cfg.OSC.HideDisconnections = getEnvBool("OSC_HIDE_DISCONNECTIONS", false)
	cfg.OSC.AddressPrefix = getEnv("OSC_ADDRESS_PREFIX", "/avatar/parameters/")
	cfg.OSC.ParamConnected = getEnv("OSC_PARAM_CONNECTED", "isHRConnected")
	cfg.OSC.ParamBeatToggle = getEnv("OSC_PARAM_BEAT_TOGGLE", "HeartBeatToggle")
	cfg.OSC.ParamBeatPulse = getEnv("OSC_PARAM_BEAT_PULSE", "isHRBeat")
	cfg.OSC.ParamBPMInt = getEnv("OSC_PARAM_BPM_INT", "HR")
	cfg.OSC.ParamBPMFloat = getEnv("OSC_PARAM_BPM_FLOAT", "floatHR")
	cfg.OSC.ParamLatestRR = getEnv("OSC_PARAM_LATEST_RR", "RRInterval")

	cfg.Websocket.Port = getEnvInt("WEBSOCKET_PORT", 5566)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "pulselink")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "heartrate/status")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 0))

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "hr:status:stream")

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", false)
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "pulselink")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 4)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 2)

	cfg.HRM.TwitchThreshold = getEnvFloat("HRM_TWITCH_THRESHOLD", 0.1)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
