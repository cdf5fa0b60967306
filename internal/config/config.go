package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 内容存储后端
const (
	StoreREST     = "rest"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string `env:"LISTEN_ADDR"`
	Port              string `env:"PORT" envDefault:"8080"`
	GinMode           string `env:"GIN_MODE" envDefault:"release"`
	DatabasePath      string `env:"DATABASE_PATH" envDefault:"site.db"`
	SessionSecret     string `env:"SESSION_SECRET" envDefault:"shwan-ortho-dev-secret"`
	SuperRootUserName string `env:"SUPER_ROOT_USER_NAME"`
	SuperRootPassword string `env:"SUPER_ROOT_PASSWORD"`

	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"rest"`
	SupabaseURL       string        `env:"SUPABASE_URL"`
	SupabaseAnonKey   string        `env:"SUPABASE_ANON_KEY"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`
	StorePollInterval time.Duration `env:"STORE_POLL_INTERVAL" envDefault:"15s"`

	LocalesDir      string        `env:"LOCALES_DIR" envDefault:"locales"`
	BackupDir       string        `env:"BACKUP_DIR" envDefault:"backups"`
	MirrorToLocal   bool          `env:"MIRROR_TO_LOCAL" envDefault:"false"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	SyncConcurrency int           `env:"SYNC_CONCURRENCY" envDefault:"8"`

	StaticDir   string `env:"STATIC_DIR" envDefault:"web/static"`
	TemplateDir string `env:"TEMPLATE_DIR" envDefault:"web/template"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load 读取可选的 .env 文件后从环境变量解析配置，并为缺失项提供默认值。
func Load(envFiles ...string) (AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// .env 不存在时静默跳过
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%s", c.Port)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/")
	c.SupabaseAnonKey = strings.TrimSpace(c.SupabaseAnonKey)
	c.SuperRootUserName = strings.TrimSpace(c.SuperRootUserName)
	c.SuperRootPassword = strings.TrimSpace(c.SuperRootPassword)
	if c.SyncConcurrency <= 0 {
		c.SyncConcurrency = 8
	}
}

// Validate 检查互相依赖的配置项。
func (c AppConfig) Validate() error {
	switch c.StoreDriver {
	case StoreREST, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// RemoteConfigured 表示托管存储的地址和密钥是否都已提供。
func (c AppConfig) RemoteConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}
