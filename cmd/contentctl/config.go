package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shwanortho/site/internal/config"
	"github.com/spf13/viper"
)

const (
	configFileName = "contentctl"
	configFileType = "yaml"

	keyLocalesDir  = "locales_dir"
	keyBackupDir   = "backup_dir"
	keyStoreDriver = "store_driver"
	keyDatabase    = "database_path"
	keyDatabaseURL = "database_url"
	keySupabaseURL = "supabase_url"
	keySupabaseKey = "supabase_anon_key"
)

// loadConfig reads the server configuration and overlays contentctl.yaml and flags on it.
// A missing default contentctl.yaml is not an error; a missing --config file is.
func loadConfig(v *viper.Viper, configFile, envFile string) (config.AppConfig, error) {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}

	v.SetConfigType(configFileType)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return config.AppConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	overlay := map[string]*string{
		keyLocalesDir:  &cfg.LocalesDir,
		keyBackupDir:   &cfg.BackupDir,
		keyStoreDriver: &cfg.StoreDriver,
		keyDatabase:    &cfg.DatabasePath,
		keyDatabaseURL: &cfg.DatabaseURL,
		keySupabaseURL: &cfg.SupabaseURL,
		keySupabaseKey: &cfg.SupabaseAnonKey,
	}
	for key, dst := range overlay {
		if v.IsSet(key) {
			if value := strings.TrimSpace(v.GetString(key)); value != "" {
				*dst = value
			}
		}
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, err
	}
	return cfg, nil
}
