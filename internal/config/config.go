package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Client   ClientConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	provider, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Provider: provider, Client: client, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ProviderConfig 描述 Amazon Connect 相关配置。
type ProviderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	FlowID          string
	InstanceID      string
	// Endpoint overrides the service endpoint, used against local stand-ins.
	Endpoint string
}

// Enabled 表示是否提供了建立聊天所需的最少配置。
func (c ProviderConfig) Enabled() bool {
	return c.Region != "" && c.FlowID != "" && c.InstanceID != ""
}

// StaticCredentials reports whether an explicit key pair was configured.
func (c ProviderConfig) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func loadProviderConfig() (ProviderConfig, error) {
	cfg := ProviderConfig{
		Region:          strings.TrimSpace(os.Getenv("REGION")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("SECRET_ACCESS_KEY")),
		SessionToken:    strings.TrimSpace(os.Getenv("SESSION_TOKEN")),
		FlowID:          strings.TrimSpace(os.Getenv("FLOW_ID")),
		InstanceID:      strings.TrimSpace(os.Getenv("INSTANCE_ID")),
		Endpoint:        strings.TrimSpace(os.Getenv("PROVIDER_ENDPOINT")),
	}

	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return ProviderConfig{}, fmt.Errorf("ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together")
	}
	if cfg.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
			return ProviderConfig{}, fmt.Errorf("invalid PROVIDER_ENDPOINT value %q: %w", cfg.Endpoint, err)
		}
	}
	return cfg, nil
}

// ClientConfig 描述终端聊天客户端的配置。
type ClientConfig struct {
	RelayURL      string
	RefreshMargin time.Duration
	HTTPTimeout   time.Duration
	StreamTopic   string
}

func loadClientConfig() (ClientConfig, error) {
	relayURL := getEnvOrDefault("RELAY_URL", "http://localhost:8080/connectChat")
	if _, err := url.ParseRequestURI(relayURL); err != nil {
		return ClientConfig{}, fmt.Errorf("invalid RELAY_URL value %q: %w", relayURL, err)
	}

	margin, err := parseDurationEnv("CHAT_REFRESH_MARGIN", 5*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}
	if margin < 0 {
		return ClientConfig{}, fmt.Errorf("invalid CHAT_REFRESH_MARGIN value %q: must not be negative", margin)
	}

	timeout, err := parseDurationEnv("CHAT_HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		RelayURL:      strings.TrimRight(relayURL, "/"),
		RefreshMargin: margin,
		HTTPTimeout:   timeout,
		StreamTopic:   getEnvOrDefault("CHAT_STREAM_TOPIC", "aws/chat"),
	}, nil
}

// LogConfig 日志配置
type LogConfig struct {
	Level string
	// Format is "console" or "json".
	Format string
}

func loadLogConfig() (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console"))
	if format != "console" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	if _, err := zerolog.ParseLevel(level); err != nil {
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}
	return LogConfig{
		Level:  level,
		Format: format,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按毫秒解析
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
