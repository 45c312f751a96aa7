package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DreamCats/vecserve/internal/config"
)

// SetupLogging 为子命令创建本次运行的日志文件，并安装同时写 stderr 与文件的 slog 默认 logger。
// 返回的 close 函数在退出前关闭日志文件。
func SetupLogging(subcommand string, cfg *config.LogConfig, quiet bool) (*slog.Logger, func(), error) {
	logDir := cfg.Dir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, err
		}
		logDir = filepath.Join(homeDir, ".vecserve", "logs")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, err
	}

	timestamp := time.Now().Format("20060102-150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("vecserve-%s-%s-%d.log", subcommand, timestamp, os.Getpid()))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = io.MultiWriter(os.Stderr, logFile)
	if quiet {
		out = logFile
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}))
	slog.SetDefault(logger)
	logger.Debug("log file", "path", logPath)
	return logger, func() { _ = logFile.Close() }, nil
}

// ParseLevel 将配置中的级别字符串转换为 slog.Level，未知值按 info 处理。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
