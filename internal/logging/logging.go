package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Format string
	// Output 日志输出路径，空值为 stderr
	Output string
}

var (
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
	sessionID  atomic.Value
	episodeID  uint64
)

func init() {
	baseLogger = zap.NewNop()
	sugar = baseLogger.Sugar()
}

func InitFromEnv() error {
	cfg := Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
	return Init(cfg)
}

func Init(cfg Config) error {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == "" {
		level = "info"
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "console"
	}

	var zapCfg zap.Config
	switch format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", cfg.Format)
	}

	atomLevel := zap.NewAtomicLevel()
	if err := atomLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.Level)
	}
	zapCfg.Level = atomLevel

	if output := strings.TrimSpace(cfg.Output); output != "" {
		zapCfg.OutputPaths = []string{output}
		zapCfg.ErrorOutputPaths = []string{output}
		// colored levels are unreadable in files
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := zapCfg.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	baseLogger = logger
	sugar = logger.Sugar()
	return nil
}

func Sync() {
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

func SetSessionID(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	sessionID.Store(id)
}

func NewSessionID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "session-unknown"
	}
	return id.String()
}

// StartEpisode 每次全局暂停/恢复时递增
func StartEpisode() uint64 {
	return atomic.AddUint64(&episodeID, 1)
}

func Debugf(format string, args ...interface{}) {
	withFields().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	withFields().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	withFields().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	withFields().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	withFields().Fatalf(format, args...)
}

func withFields() *zap.SugaredLogger {
	sid, _ := sessionID.Load().(string)
	if sid == "" {
		sid = "session-unknown"
	}
	return sugar.With(
		"session_id", sid,
		"episode", atomic.LoadUint64(&episodeID),
	)
}
