// Config loading for the avmeta CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/avmeta/internal/logging"
	"github.com/mesh-intelligence/avmeta/internal/paths"
	"github.com/mesh-intelligence/avmeta/pkg/avm"
	"github.com/mesh-intelligence/avmeta/pkg/schema"
	"github.com/mesh-intelligence/avmeta/pkg/sqlite"
	"github.com/mesh-intelligence/avmeta/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeySchemaFile = "schema_file"
	cfgKeyLogLevel   = "log_level"

	envSchemaFile = "AVMETA_SCHEMA_FILE"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir,omitempty"`
	SchemaFile string `yaml:"schema_file,omitempty"`
	LogLevel   string `yaml:"log_level,omitempty"`
}

// settings is the resolved configuration of one invocation.
type settings struct {
	configDir  string
	dataDir    string
	backend    string
	schemaFile string
	logLevel   string
}

// loadSettings resolves directories and reads config.yaml with viper.
// A missing config.yaml is not an error.
func loadSettings(flags *rootFlags) (*settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.BindEnv(cfgKeySchemaFile, envSchemaFile); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	schemaFile := v.GetString(cfgKeySchemaFile)
	if schemaFile != "" && !filepath.IsAbs(schemaFile) {
		schemaFile = filepath.Join(configDir, schemaFile)
	}
	return &settings{
		configDir:  configDir,
		dataDir:    dataDir,
		backend:    v.GetString(cfgKeyBackend),
		schemaFile: schemaFile,
		logLevel:   v.GetString(cfgKeyLogLevel),
	}, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	cfg := configFile{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}

// app bundles what the commands share: resolved settings, the logger and
// the field registry.
type app struct {
	flags    *rootFlags
	settings *settings
	logger   *zap.Logger
	reg      *schema.Registry
}

func newApp(flags *rootFlags) (*app, error) {
	s, err := loadSettings(flags)
	if err != nil {
		return nil, sysError("%w", err)
	}
	logger := logging.Must(logging.Config{Profile: logging.ProfileRuntime, Level: s.logLevel})

	reg := schema.AVM11()
	if s.schemaFile != "" {
		reg, err = schema.Load(s.schemaFile)
		if err != nil {
			return nil, userError("load schema: %w", err)
		}
		logger.Info("schema loaded", zap.String("path", s.schemaFile), zap.String("version", reg.Version()))
	}
	return &app{flags: flags, settings: s, logger: logger, reg: reg}, nil
}

func (a *app) metaOptions() []avm.Option {
	return []avm.Option{avm.WithLogger(a.logger)}
}

// attach opens the catalog. The caller must defer Detach.
func (a *app) attach() (*sqlite.Backend, error) {
	b := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	cfg := types.Config{Backend: a.settings.backend, DataDir: a.settings.dataDir}
	if err := b.Attach(cfg); err != nil {
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrBackendEmpty) {
			return nil, userError("attach catalog: %w", err)
		}
		return nil, sysError("attach catalog: %w", err)
	}
	return b, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
