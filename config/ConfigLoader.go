package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SITESWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.TechnicalParameters.InstanceId == "" {
		cfg.TechnicalParameters.InstanceId = uuid.New().String()
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 3306)
	v.SetDefault("wordpress.tablePrefix", "wp_")
	v.SetDefault("wordpress.networkSiteId", 1)
	v.SetDefault("cleanup.schedule", "0 3 * * *")
	v.SetDefault("cleanup.executionTimeHintSeconds", 300)
	v.SetDefault("cleanup.revisionsEnabled", true)
	v.SetDefault("cleanup.revisionsToKeep", 0)
	v.SetDefault("cleanup.transientsEnabled", true)
	v.SetDefault("cleanup.orphanedDataEnabled", true)
	v.SetDefault("cleanup.spamCommentsEnabled", true)
	v.SetDefault("cleanup.trashEnabled", true)
	v.SetDefault("cleanup.autoCleanTrashDays", 30)
	v.SetDefault("cleanup.autoDraftsEnabled", true)
	v.SetDefault("security.rateLimitPerMinute", 10)
	v.SetDefault("technicalParameters.listenAddress", ":8080")
	v.SetDefault("technicalParameters.logLevel", "info")
}
