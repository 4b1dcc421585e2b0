package config

import (
	"net/url"
	"os"
	"strings"

	"codeberg.org/mutker/benchctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEndpoint      = "ws://192.168.137.157:81"
	DefaultWindowSize    = 10
	DefaultLabelMode     = LabelModeTime
	DefaultDuration      = 30
	DefaultFileName      = "data"
	DefaultExportDir     = "."
	DefaultDashboardAddr = "127.0.0.1:8080"
	DefaultArchiveDB     = "/var/lib/benchctl/sessions.db"
	DefaultLogLevel      = string(LogLevelInfo)
	DefaultEnvPrefix     = "BENCHCTL"
	configEnvVar         = "_CONFIG"
	configName           = "benchctl"
)

type Config struct {
	Endpoint      string    `mapstructure:"endpoint"`
	WindowSize    int       `mapstructure:"window_size"`
	LabelMode     LabelMode `mapstructure:"label_mode"`
	Motor1Speed   int       `mapstructure:"motor1_speed"`
	Motor2Speed   int       `mapstructure:"motor2_speed"`
	Duration      float64   `mapstructure:"duration"`
	TargetWattage float64   `mapstructure:"target_wattage"`
	FileName      string    `mapstructure:"file_name"`
	ExportDir     string    `mapstructure:"export_dir"`
	DashboardAddr string    `mapstructure:"dashboard_addr"`
	Archive       bool      `mapstructure:"archive"`
	ArchiveDB     string    `mapstructure:"archive_db"`
	PIDDir        string    `mapstructure:"pid_dir"`
	LogLevel      string    `mapstructure:"log_level"`
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"endpoint":       "endpoint",
	"window-size":    "window_size",
	"label-mode":     "label_mode",
	"motor1-speed":   "motor1_speed",
	"motor2-speed":   "motor2_speed",
	"duration":       "duration",
	"target-wattage": "target_wattage",
	"file":           "file_name",
	"export-dir":     "export_dir",
	"dashboard":      "dashboard_addr",
	"archive":        "archive",
	"archive-db":     "archive_db",
	"pid-dir":        "pid_dir",
	"log-level":      "log_level",
}

// Load reads configuration from the process arguments
func Load(opts ...Option) (*Config, error) {
	return LoadArgs(os.Args[1:], opts...)
}

// LoadArgs reads configuration from defaults, the config file, the
// environment and args, in increasing order of precedence.
func LoadArgs(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + configEnvVar)
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("window_size", DefaultWindowSize)
	v.SetDefault("label_mode", string(DefaultLabelMode))
	v.SetDefault("motor1_speed", 0)
	v.SetDefault("motor2_speed", 0)
	v.SetDefault("duration", DefaultDuration)
	v.SetDefault("target_wattage", 0)
	v.SetDefault("file_name", DefaultFileName)
	v.SetDefault("export_dir", DefaultExportDir)
	v.SetDefault("dashboard_addr", DefaultDashboardAddr)
	v.SetDefault("archive", false)
	v.SetDefault("archive_db", DefaultArchiveDB)
	v.SetDefault("pid_dir", os.TempDir())
	v.SetDefault("log_level", DefaultLogLevel)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.String("endpoint", DefaultEndpoint, "Controller websocket endpoint")
	fs.Int("window-size", DefaultWindowSize, "Number of samples kept for the chart")
	fs.String("label-mode", string(DefaultLabelMode), "Chart labels: time, index, frame_size or sequence")
	fs.Int("motor1-speed", 0, "Initial motor 1 speed setpoint [-127, 127]")
	fs.Int("motor2-speed", 0, "Initial motor 2 speed setpoint [-127, 127]")
	fs.Float64("duration", DefaultDuration, "Benchmark duration in seconds")
	fs.Float64("target-wattage", 0, "Target electrical power in watts (0 disables)")
	fs.String("file", DefaultFileName, "Export file name")
	fs.String("export-dir", DefaultExportDir, "Directory exported sessions are written to")
	fs.String("dashboard", DefaultDashboardAddr, "Dashboard listen address (empty disables)")
	fs.Bool("archive", false, "Record finished sessions in the archive database")
	fs.String("archive-db", DefaultArchiveDB, "Path to the session archive database")
	fs.String("pid-dir", os.TempDir(), "Directory for the instance lock file")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	return fs
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errFactory.WithData(errors.ErrInvalidEndpoint, c.Endpoint)
	}

	if c.WindowSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "window_size",
			Value: c.WindowSize,
		})
	}

	if !c.LabelMode.IsValid() {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{
			Field: "label_mode",
			Value: string(c.LabelMode),
		})
	}

	if c.Archive && c.ArchiveDB == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "archive enabled without archive_db")
	}

	return nil
}
