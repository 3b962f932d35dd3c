package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	ListenAddr     string `mapstructure:"listen_addr"`      // HTTP 监听地址
	DatabasePath   string `mapstructure:"database_path"`    // SQLite 数据库文件，":memory:" 表示内存库
	JournalPath    string `mapstructure:"journal_path"`     // 变更日志文件，为空时不记录
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"` // 上传配置文件的大小上限
	LogLevel       string `mapstructure:"log_level"`        // debug/info/warn/error
	StaticDir      string `mapstructure:"static_dir"`       // 前端静态文件目录，为空时不提供
}

// Load 加载配置。path 为空时在当前目录查找 config.yaml，找不到则只使用默认值；
// 显式指定的文件必须存在。环境变量 PLANT_* 覆盖文件中的同名键。
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // 配置文件名称 (不带扩展名)
		v.SetConfigType("yaml")   // 配置文件类型
		v.AddConfigPath(".")      // 查找配置文件的路径 (当前目录)
	}

	// 设置默认值
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_path", "plant.db")
	v.SetDefault("journal_path", "changes.jsonl")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_dir", "")

	v.SetEnvPrefix("PLANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 将配置解析到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max_upload_bytes 必须为正数: %d", cfg.MaxUploadBytes)
	}

	return &cfg, nil
}

// SlogLevel 将 log_level 转换为 slog.Level，无法识别时返回 Info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
