package conf

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/HildaM/logs/slog"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultPath = "config.yaml" // 默认配置文件

var (
	// 全局 koanf 实例，使用 "." 作为键路径分隔符
	k = koanf.New(".")
	// 配置读写锁，确保并发安全
	configMu sync.RWMutex
	// 文件提供者
	f *file.File
	// 缓存的配置实例
	appConf *AppConfig
)

// Init 初始化配置
func Init(path string) error {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	// 加载配置
	if err := loadConfig(path); err != nil {
		return fmt.Errorf("Init config failed, load config err: %v", err)
	}

	// 启动配置文件监听
	startConfigWatch()

	// 初始化日志
	cfg := GetCfg()
	if err := slog.InitFile(cfg.Log.File, slog.WithLevel(cfg.Log.Level), slog.WithColor(false)); err != nil {
		return fmt.Errorf("Init log failed, err: %+v", err)
	}

	slog.Info("Init config: store = %s, model = %s", cfg.Store.Backend, cfg.Model.DefaultModel.ModelID)
	return nil
}

// loadConfig 加载配置
func loadConfig(path string) error {
	configMu.Lock()
	defer configMu.Unlock()

	// 创建文件提供者
	f = file.Provider(path)

	config, err := parse(k, f)
	if err != nil {
		return err
	}

	// 更新全局配置实例
	appConf = config
	return nil
}

// parse 从文件提供者读取配置并补全默认值与环境变量覆盖
func parse(ko *koanf.Koanf, provider koanf.Provider) (*AppConfig, error) {
	if err := ko.Load(provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// 解析配置到结构体，使用 yaml 标签
	var config AppConfig
	if err := ko.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnv(&config)
	applyDefaults(&config)
	return &config, nil
}

// applyEnv 凭证等敏感信息优先从环境变量读取
func applyEnv(cfg *AppConfig) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"OPENAI_API_KEY", &cfg.Model.DefaultModel.APIKey},
		{"OPENAI_BASE_URL", &cfg.Model.DefaultModel.BaseURL},
		{"MODEL_ID", &cfg.Model.DefaultModel.ModelID},
		{"REDIS_URL", &cfg.Store.RedisURL},
		{"NATS_URL", &cfg.Store.NatsURL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// applyDefaults 补全默认值
func applyDefaults(cfg *AppConfig) {
	if cfg.Model.JudgeModel.ModelID == "" {
		cfg.Model.JudgeModel = cfg.Model.DefaultModel
	}
	if cfg.Model.JudgeModel.APIKey == "" {
		cfg.Model.JudgeModel.APIKey = cfg.Model.DefaultModel.APIKey
	}
	if cfg.Model.JudgeModel.BaseURL == "" {
		cfg.Model.JudgeModel.BaseURL = cfg.Model.DefaultModel.BaseURL
	}
	if cfg.Setting.AgentMaxStep <= 0 {
		cfg.Setting.AgentMaxStep = 20
	}
	if cfg.Setting.MaxLimitToken <= 0 {
		cfg.Setting.MaxLimitToken = 20000
	}
	if cfg.Setting.MaxContextLength <= 0 {
		cfg.Setting.MaxContextLength = 5000
	}
	if cfg.Setting.ReportPreview <= 0 {
		cfg.Setting.ReportPreview = 500
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = 1
	}
	if cfg.Retry.Multiplier <= 0 {
		cfg.Retry.Multiplier = 2
	}
	if len(cfg.Retry.StatusCodes) == 0 {
		cfg.Retry.StatusCodes = []int{429, 500, 503, 504}
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "data"
	}
	if cfg.Store.Prefix == "" {
		cfg.Store.Prefix = "relay:slot:"
	}
	if cfg.Store.Bucket == "" {
		cfg.Store.Bucket = "relay_slots"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8888"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "logs/app.log"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
}

// GetCfg 获取当前配置，热更新后返回新实例，调用方应在每次使用时读取
func GetCfg() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConf
}

// startConfigWatch 启动配置文件监听
func startConfigWatch() {
	if f == nil {
		log.Printf("file provider not initialized")
		return
	}

	// 监听文件变化并在变化时重新加载配置
	f.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Printf("Config file watch error: %v", err)
			return
		}

		log.Printf("Config file changed. Reloading...")
		if err := reload(f); err != nil {
			log.Printf("Failed to reload config: %v", err)
		}
	})
}

// reload 用新的 koanf 实例重新解析配置并替换当前配置，失败时保留旧配置
func reload(provider koanf.Provider) error {
	fresh := koanf.New(".")
	config, err := parse(fresh, provider)
	if err != nil {
		return err
	}

	configMu.Lock()
	defer configMu.Unlock()
	k = fresh
	appConf = config
	log.Printf("Config reloaded, store = %s", config.Store.Backend)
	return nil
}
