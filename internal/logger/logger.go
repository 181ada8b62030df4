package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// getK8sMetadata 获取 Kubernetes 元数据（Pod 名称、Namespace 等）
func getK8sMetadata() []zap.Field {
	var fields []zap.Field

	if podName := os.Getenv("POD_NAME"); podName != "" {
		fields = append(fields, zap.String("pod_name", podName))
	}
	if namespace := os.Getenv("POD_NAMESPACE"); namespace != "" {
		fields = append(fields, zap.String("namespace", namespace))
	}
	if nodeName := os.Getenv("NODE_NAME"); nodeName != "" {
		fields = append(fields, zap.String("node_name", nodeName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("server_name", hostname))
	}

	return fields
}

var globalLogger *zap.Logger

// parseLevel 解析日志级别，未知值按 info 处理
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init 初始化日志（支持多输出：stderr、文件、Kafka）
// stdout 保留给样本记录行，日志永远不写 stdout
func Init(cfg *config.LoggerConfig, sender Sender) error {
	zapLevel := parseLevel(cfg.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	enabler := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapLevel
	})

	// 开启 Kafka 输出时不再写文件，避免日志重复
	shouldOutputToKafka := contains(cfg.Output, "kafka") && cfg.Kafka.Enabled && sender != nil
	shouldOutputToFile := contains(cfg.Output, "file") && !shouldOutputToKafka

	if shouldOutputToFile {
		if logDir := filepath.Dir(cfg.File.Path); logDir != "" && logDir != "." {
			_ = os.MkdirAll(logDir, 0755) // lumberjack 首次写入时会再次尝试
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), enabler))
	}

	if shouldOutputToKafka {
		// Kafka 日志固定用 JSON 编码，KafkaCore 需要解析字段
		jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores, NewKafkaCore(jsonEncoder, sender, cfg.Kafka.Topic, enabler))
	}

	if cfg.Console.Enabled {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), enabler))
	}

	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	core := zapcore.NewTee(cores...)
	globalLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	if k8sFields := getK8sMetadata(); len(k8sFields) > 0 {
		globalLogger = globalLogger.With(k8sFields...)
	}

	return nil
}

// GetLogger 获取全局 logger，未初始化时输出到 stderr
func GetLogger() *zap.Logger {
	if globalLogger == nil {
		Init(&config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			Console: config.ConsoleLogConfig{Enabled: true},
		}, nil)
	}
	return globalLogger
}

// Sync 同步日志
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// contains 检查字符串切片是否包含指定字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
