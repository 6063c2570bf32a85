package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/feast"
	"github.com/rushteam/ephemeral/pkg/logging"
	"github.com/rushteam/ephemeral/store"
)

// EnvPrefix 是服务配置环境变量前缀：EPHEMERAL_MODEL_BACKEND -> model.backend
const EnvPrefix = "EPHEMERAL_"

// 隐向量后端
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFeast  = "feast"
)

// ModelConfig 描述隐向量从哪里加载。
type ModelConfig struct {
	// Backend: memory（JSON 文件种子）、redis、feast
	Backend string `koanf:"backend"`

	// File 是 memory 后端的 JSON 种子文件
	File string `koanf:"file"`

	// KeyPrefix 是 store 中隐向量键前缀
	KeyPrefix string `koanf:"key_prefix"`

	BatchSize   int `koanf:"batch_size"`
	Concurrency int `koanf:"concurrency"`

	// LoadTimeout 限制一次完整加载的时长
	LoadTimeout time.Duration `koanf:"load_timeout"`

	Feast feast.Config `koanf:"feast"`
}

// UniverseConfig 描述召回候选集。
type UniverseConfig struct {
	// Keys 是 store 中候选集 JSON 数组所在的键；多个键时并发读取后按顺序去重合并
	Keys []string `koanf:"keys"`

	// Timeout 是多键合并时单个键的读取超时
	Timeout time.Duration `koanf:"timeout"`
}

// 算法 1 打分模型
const (
	PredictorLatent = "latent"
	PredictorRPC    = "rpc"
	PredictorKServe = "kserve"
)

// PredictorConfig 描述算法 1 使用的打分模型。
type PredictorConfig struct {
	// Kind: latent（隐向量点积，默认）、rpc、kserve
	Kind     string        `koanf:"kind"`
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`

	// ModelName / Protocol / Token 仅 kserve 使用；Protocol 为 v1 或 v2
	ModelName string `koanf:"model_name"`
	Protocol  string `koanf:"protocol"`
	Token     string `koanf:"token"`
}

// Service 是进程级配置：日志、存储、模型与策略文件位置。
type Service struct {
	Logging   logging.Config     `koanf:"logging"`
	Policy    string             `koanf:"policy"`
	Redis     store.RedisOptions `koanf:"redis"`
	Model     ModelConfig        `koanf:"model"`
	Universe  UniverseConfig     `koanf:"universe"`
	Predictor PredictorConfig    `koanf:"predictor"`
}

// DefaultService 返回默认服务配置。
func DefaultService() *Service {
	return &Service{
		Logging: logging.DefaultConfig(),
		Policy:  "ranker.yaml",
		Redis: store.RedisOptions{
			Addr:        "127.0.0.1:6379",
			DialTimeout: 5 * time.Second,
		},
		Model: ModelConfig{
			Backend:     BackendMemory,
			KeyPrefix:   "latent",
			BatchSize:   500,
			Concurrency: 4,
			LoadTimeout: 2 * time.Minute,
			Feast: feast.Config{
				UserEntity: "user_id",
				ItemEntity: "movie_id",
			},
		},
		Universe: UniverseConfig{
			Keys:    []string{"universe"},
			Timeout: 2 * time.Second,
		},
		Predictor: PredictorConfig{
			Kind:     PredictorLatent,
			Timeout:  5 * time.Second,
			Protocol: "v2",
		},
	}
}

// LoadService 分层加载：默认值 -> YAML 文件（可选）-> EPHEMERAL_ 环境变量。
func LoadService(path string) (*Service, error) {
	k := koanf.New(".")

	defaults := DefaultService()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
				fmt.Sprintf("config file %s", path), err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration,
				fmt.Sprintf("load config file %s", path), err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Service{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "unmarshal service config", err)
	}
	cfg.Logging.Output = defaults.Logging.Output

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey 把 EPHEMERAL_MODEL_KEY_PREFIX 映射为 model.key_prefix：第一段为分节，其余保留下划线。
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	switch section {
	case "model":
		if sub, field, ok := strings.Cut(rest, "_"); ok && sub == "feast" {
			return "model.feast." + field
		}
	case "logging", "redis", "universe", "predictor":
	default:
		return key
	}
	return section + "." + rest
}

// Validate 校验后端取值与必填项。
func (s *Service) Validate() error {
	switch s.Model.Backend {
	case BackendMemory:
		if s.Model.File == "" {
			return core.Configurationf(core.ModuleConfig, "model.file is required for the memory backend")
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			return core.Configurationf(core.ModuleConfig, "redis.addr is required for the redis backend")
		}
	case BackendFeast:
		if s.Model.Feast.Endpoint == "" || s.Model.Feast.Project == "" {
			return core.Configurationf(core.ModuleConfig, "model.feast.endpoint and model.feast.project are required")
		}
	default:
		return core.Configurationf(core.ModuleConfig, "unknown model backend %q", s.Model.Backend)
	}
	if s.Model.BatchSize <= 0 || s.Model.Concurrency <= 0 {
		return core.Configurationf(core.ModuleConfig, "model.batch_size and model.concurrency must be positive")
	}
	switch s.Predictor.Kind {
	case PredictorLatent:
	case PredictorRPC, PredictorKServe:
		if s.Predictor.Endpoint == "" {
			return core.Configurationf(core.ModuleConfig, "predictor.endpoint is required for the %s predictor", s.Predictor.Kind)
		}
		if s.Predictor.Kind == PredictorKServe && s.Predictor.ModelName == "" {
			return core.Configurationf(core.ModuleConfig, "predictor.model_name is required for the kserve predictor")
		}
	default:
		return core.Configurationf(core.ModuleConfig, "unknown predictor kind %q", s.Predictor.Kind)
	}
	if len(s.Universe.Keys) == 0 {
		return core.Configurationf(core.ModuleConfig, "universe.keys must not be empty")
	}
	if s.Policy == "" {
		return core.Configurationf(core.ModuleConfig, "policy path is required")
	}
	return nil
}
