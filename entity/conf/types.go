package conf

// MCPServerConfig MCP服务器配置
type MCPServerConfig struct {
	Command    string            `yaml:"command" mapstructure:"command"`                   // MCP服务器启动命令
	Args       []string          `yaml:"args" mapstructure:"args"`                         // 命令行参数列表
	Env        map[string]string `yaml:"env,omitempty" mapstructure:"env,omitempty"`       // 环境变量映射，可选配置
	URL        string            `yaml:"url,omitempty" mapstructure:"url,omitempty"`       // SSE服务地址，配置后按SSE方式连接
	Headers    []string          `yaml:"headers,omitempty" mapstructure:"headers"`         // SSE请求头，格式为 "Key: Value"
	ToolFilter []string          `yaml:"tool_filter,omitempty" mapstructure:"tool_filter"` // 只暴露列出的工具，为空则全部暴露
	Timeout    int               `yaml:"timeout,omitempty" mapstructure:"timeout"`         // 初始化超时秒数
}

// MCPConfig MCP配置
type MCPConfig struct {
	Servers map[string]MCPServerConfig `yaml:"servers" mapstructure:"servers"` // MCP服务器配置映射，key为服务器名称
}

// Model 单个模型配置
type Model struct {
	ModelID string `yaml:"model_id" mapstructure:"model_id"` // 模型ID
	BaseURL string `yaml:"base_url" mapstructure:"base_url"` // 模型服务的基础URL地址
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`   // 模型服务的API密钥
}

// ModelConfig 模型配置
type ModelConfig struct {
	DefaultModel Model `yaml:"default_model" mapstructure:"default_model"` // 默认使用的模型
	JudgeModel   Model `yaml:"judge_model" mapstructure:"judge_model"`     // 评估使用的模型，为空时沿用默认模型
}

// SettingConfig 应用运行配置
type SettingConfig struct {
	AgentMaxStep     int    `yaml:"agent_max_step" mapstructure:"agent_max_step"`         // 每个 agent 最大执行步骤数
	MaxLimitToken    int    `yaml:"max_limit_token" mapstructure:"max_limit_token"`       // agent 工作消息的最大长度
	MaxContextLength int    `yaml:"max_context_length" mapstructure:"max_context_length"` // 注入下游的上下文最大长度
	ReportPreview    int    `yaml:"report_preview" mapstructure:"report_preview"`         // 结果预览长度
	PromptDir        string `yaml:"prompt_dir" mapstructure:"prompt_dir"`                 // 提示词模板目录，为空时使用内置模板
}

// RetryConfig 模型调用重试配置
type RetryConfig struct {
	Attempts     int     `yaml:"attempts" mapstructure:"attempts"`           // 最大尝试次数
	InitialDelay float64 `yaml:"initial_delay" mapstructure:"initial_delay"` // 首次重试等待秒数
	Multiplier   float64 `yaml:"multiplier" mapstructure:"multiplier"`       // 指数退避倍数
	StatusCodes  []int   `yaml:"status_codes" mapstructure:"status_codes"`   // 需要重试的HTTP状态码
}

// StoreConfig 状态存储配置
type StoreConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"`         // file | memory | redis | nats
	Dir        string `yaml:"dir" mapstructure:"dir"`                 // file 后端的数据目录
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`     // redis 连接串
	Prefix     string `yaml:"prefix" mapstructure:"prefix"`           // redis key 前缀
	NatsURL    string `yaml:"nats_url" mapstructure:"nats_url"`       // nats 连接串
	Bucket     string `yaml:"bucket" mapstructure:"bucket"`           // nats KV bucket
	CacheBytes int64  `yaml:"cache_bytes" mapstructure:"cache_bytes"` // 本地缓存容量，0 表示不启用
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // 监听地址
}

// LogConfig 日志配置
type LogConfig struct {
	File  string `yaml:"file" mapstructure:"file"`   // 日志文件
	Level string `yaml:"level" mapstructure:"level"` // 日志级别
}

// AppConfig 应用配置
type AppConfig struct {
	MCP     MCPConfig     `yaml:"mcp" mapstructure:"mcp"`         // MCP服务相关配置
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`     // 大语言模型相关配置
	Setting SettingConfig `yaml:"setting" mapstructure:"setting"` // 应用运行时配置参数
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`     // 重试配置
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`     // 状态存储配置
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`   // HTTP服务配置
	Log     LogConfig     `yaml:"log" mapstructure:"log"`         // 日志配置
}
