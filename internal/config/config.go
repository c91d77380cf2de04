package config

import (
	"context"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=moderator"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.ngmod"`
		OwnerID          int64    `env:"OWNER_ID"`
		UpdateWorkers    int      `env:"UPDATE_WORKERS,default=16"`
		Moderation       Moderation
		Observability    Observability
	}

	Moderation struct {
		DefaultWarnLimit     int           `env:"MOD_DEFAULT_WARN_LIMIT,default=3"`
		Persist              bool          `env:"MOD_PERSIST,default=false"`
		DBName               string        `env:"MOD_DB_NAME,default=moderation.db"`
		CapabilityTTL        time.Duration `env:"MOD_CAPABILITY_TTL,default=1m"`
		UnmuteAllParallelism int           `env:"MOD_UNMUTE_ALL_PARALLELISM,default=4"`
		MentionChunk         int           `env:"MOD_MENTION_CHUNK,default=5"`
	}

	Observability struct {
		MetricsAddr string `env:"METRICS_ADDR"`
		Tracing     bool   `env:"TRACING,default=false"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Load reads the NG_ prefixed environment once per process.
func Load() (Config, error) {
	once.Do(func() {
		cfg, err := process(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper("NG_", lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}

	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, errors.Wrap(err, "expand dot path")
	}
	cfg.DotPath = dotPath

	if cfg.Moderation.DefaultWarnLimit < 1 {
		return nil, errors.Errorf("NG_MOD_DEFAULT_WARN_LIMIT must be at least 1, got %d", cfg.Moderation.DefaultWarnLimit)
	}
	if cfg.Moderation.MentionChunk < 1 {
		cfg.Moderation.MentionChunk = 5
	}
	if cfg.UpdateWorkers < 1 {
		cfg.UpdateWorkers = 1
	}
	return cfg, nil
}
