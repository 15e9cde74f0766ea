// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，仅由 main 读取后按需注入到各组件中。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	AI            AIConfig            `mapstructure:"ai"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"` // mysql 或 sqlite
	MySQL  MySQLConfig `mapstructure:"mysql"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                   string `mapstructure:"secret"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AIConfig 存储所有大模型供应商的配置。
// 凭证通常来自环境变量，缺失时对应的供应商退化为 echo 模式。
type AIConfig struct {
	DefaultProvider string           `mapstructure:"default_provider"`
	DefaultModel    string           `mapstructure:"default_model"`
	OpenAI          ProviderConfig   `mapstructure:"openai"`
	Google          ProviderConfig   `mapstructure:"google"`
	Anthropic       ProviderConfig   `mapstructure:"anthropic"`
	Generation      GenerationConfig `mapstructure:"generation"`
}

// ProviderConfig 是单个供应商的连接参数。
type ProviderConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
}

// GenerationConfig 配置生成相关参数（可选）。
type GenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// providerEnv 将供应商凭证映射到约定的环境变量名。
var providerEnv = map[string][]string{
	"ai.openai.api_key":     {"OPENAI_API_KEY"},
	"ai.openai.base_url":    {"OPENAI_BASE_URL"},
	"ai.google.api_key":     {"GOOGLE_GENAI_API_KEY", "GOOGLE_API_KEY"},
	"ai.google.base_url":    {"GOOGLE_GENAI_BASE_URL"},
	"ai.anthropic.api_key":  {"ANTHROPIC_API_KEY"},
	"ai.anthropic.base_url": {"ANTHROPIC_BASE_URL"},
	"jwt.secret":            {"JWT_SECRET"},
	"database.mysql.dsn":    {"DATABASE_DSN"},
}

// Load 读取 YAML 配置文件并叠加环境变量，返回解析后的配置。
// 同目录或工作目录下的 .env 文件会先被加载（不存在时忽略）。
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range providerEnv {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_minutes", 15)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("ai.default_provider", "OPENAI")
	v.SetDefault("ai.default_model", "gpt-3.5-turbo")
	v.SetDefault("ai.generation.temperature", 0.7)
	v.SetDefault("ai.generation.max_tokens", 1024)
	v.SetDefault("kafka.topic", "chat-completions")
	v.SetDefault("kafka.group_id", "llm-chat-go-consumer")
	v.SetDefault("elasticsearch.index_name", "chat_messages")
	v.SetDefault("minio.bucket_name", "chat-archives")
}
