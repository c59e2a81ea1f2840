// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName     string `toml:"appName"`     // 应用名称，用于日志标识等
	Host        string `toml:"host"`        // 服务器监听地址，如 "0.0.0.0"
	Port        int    `toml:"port"`        // 服务器监听端口，如 8000
	Mode        string `toml:"mode"`        // 运行模式："dev" 或 "release"
	TlsRedirect bool   `toml:"tlsRedirect"` // 是否将 HTTP 重定向到 HTTPS（由 Nginx 终结 TLS 时关闭）
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`  // 关闭时在线状态只走数据库，且不做发送限流
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig 广播总线配置
// channel 模式下广播只在本进程内投递；kafka 模式下经由 broadcastTopic 扇出到所有节点
type KafkaConfig struct {
	MessageMode     string        `toml:"messageMode"`     // 消息模式："channel" 或 "kafka"
	HostPort        string        `toml:"hostPort"`        // Kafka 服务器地址，如 "localhost:9092"
	BroadcastTopic  string        `toml:"broadcastTopic"`  // 广播主题
	Partition       int           `toml:"partition"`       // 自动建主题时的分区数
	Timeout         time.Duration `toml:"timeout"`         // 超时时间（秒）
	AutoCreateTopic bool          `toml:"autoCreateTopic"` // 启动时是否创建主题
}

// StaticSrcConfig 静态资源路径配置
type StaticSrcConfig struct {
	StaticFilePath string `toml:"staticFilePath"` // 上传附件存储路径
	FileMaxSize    int64  `toml:"fileMaxSize"`    // 单个附件最大字节数
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
	Issuer            string `toml:"issuer"`            // 签发方，校验时要求一致
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// ChatConfig 会话与消息相关配置
type ChatConfig struct {
	DisableReadOnFetch  bool          `toml:"disableReadOnFetch"`  // 为 true 时拉取历史消息不再推进已读位置
	DefaultPageSize     int           `toml:"defaultPageSize"`     // 历史消息默认条数
	MaxPageSize         int           `toml:"maxPageSize"`         // 历史消息单页上限
	MaxContentLength    int           `toml:"maxContentLength"`    // 消息正文最大字符数
	MaxSearchResults    int           `toml:"maxSearchResults"`    // 搜索结果上限
	StagedAttachmentTTL time.Duration `toml:"stagedAttachmentTTL"` // 未绑定附件的保留时长
	MessageRateLimit    int           `toml:"messageRateLimit"`    // 单用户窗口内最多发送条数，0 表示不限
	MessageRateWindow   time.Duration `toml:"messageRateWindow"`   // 限流窗口
}

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	StaleAfter    time.Duration `toml:"staleAfter"`    // 超过该时长无心跳视为离线
	SweepInterval time.Duration `toml:"sweepInterval"` // 过期扫描间隔
}

// TypingConfig 输入状态配置
type TypingConfig struct {
	Timeout time.Duration `toml:"timeout"` // 未收到 typing:stop 时自动结束的时长
}

// PermissionConfig HTTP 接口的角色权限表
// key 为角色，value 为允许的动作列表，"*" 表示全部
type PermissionConfig struct {
	Roles map[string][]string `toml:"roles"`
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig       `toml:"mainConfig"`       // 主配置
	MysqlConfig      `toml:"mysqlConfig"`      // MySQL 配置
	RedisConfig      `toml:"redisConfig"`      // Redis 配置
	LogConfig        `toml:"logConfig"`        // 日志配置
	KafkaConfig      `toml:"kafkaConfig"`      // Kafka 配置
	StaticSrcConfig  `toml:"staticSrcConfig"`  // 静态资源配置
	JWTConfig        `toml:"jwtConfig"`        // JWT 配置
	SnowflakeConfig  `toml:"snowflakeConfig"`  // 雪花算法配置
	ChatConfig       `toml:"chatConfig"`       // 会话与消息配置
	PresenceConfig   `toml:"presenceConfig"`   // 在线状态配置
	TypingConfig     `toml:"typingConfig"`     // 输入状态配置
	PermissionConfig `toml:"permissionConfig"` // 角色权限配置
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
// 返回值：加载成功返回 nil，否则返回错误
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	// 依次尝试加载配置文件
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil // 加载成功
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// Load 从指定路径加载配置并补齐默认值，不影响全局单例
func Load(path string) (*Config, error) {
	conf := new(Config)
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	conf.applyDefaults()
	return conf, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	conf := new(Config)
	conf.applyDefaults()
	return conf
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // 忽略加载错误，使用默认值
		config.applyDefaults()
	}
	return config
}

// applyDefaults 为缺省项填充默认值
func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "realtime_chat_server"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.MessageMode == "" {
		c.MessageMode = "channel"
	}
	if c.BroadcastTopic == "" {
		c.BroadcastTopic = "chat_broadcast"
	}
	if c.KafkaConfig.Partition == 0 {
		c.KafkaConfig.Partition = 1
	}
	if c.KafkaConfig.Timeout == 0 {
		c.KafkaConfig.Timeout = 1
	}
	if c.StaticFilePath == "" {
		c.StaticFilePath = "./static/files"
	}
	if c.FileMaxSize == 0 {
		c.FileMaxSize = 20 << 20
	}
	if c.AccessTokenExpiry == 0 {
		c.AccessTokenExpiry = 120
	}
	if c.Issuer == "" {
		c.Issuer = "realtime_chat"
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 50
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 100
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = 4000
	}
	if c.MaxSearchResults == 0 {
		c.MaxSearchResults = 50
	}
	if c.StagedAttachmentTTL == 0 {
		c.StagedAttachmentTTL = 24 * time.Hour
	}
	if c.MessageRateWindow == 0 {
		c.MessageRateWindow = 10 * time.Second
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 5 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.TypingConfig.Timeout == 0 {
		c.TypingConfig.Timeout = 5 * time.Second
	}
	if len(c.Roles) == 0 {
		c.Roles = map[string][]string{
			"admin": {"*"},
			"user":  {"conversation:*", "message:*", "attachment:*", "presence:*"},
		}
	}
}
