// Package config resolves voxdict settings from defaults, the YAML config
// file, VOXDICT_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fmueller/voxdict/internal/hotkey"
	"github.com/fmueller/voxdict/internal/platform"
	"github.com/fmueller/voxdict/internal/record"
	"github.com/fmueller/voxdict/internal/whisper"
)

const EnvPrefix = "VOXDICT"

type Config struct {
	Hotkey       string         `mapstructure:"hotkey"`
	Language     string         `mapstructure:"language"`
	Model        string         `mapstructure:"model"`
	ModelDir     string         `mapstructure:"model_dir"`
	AutoDownload bool           `mapstructure:"auto_download"`
	TempDir      string         `mapstructure:"temp_dir"`
	Engine       EngineConfig   `mapstructure:"engine"`
	Audio        AudioConfig    `mapstructure:"audio"`
	Output       OutputConfig   `mapstructure:"output"`
	Feedback     FeedbackConfig `mapstructure:"feedback"`
	Log          LogConfig      `mapstructure:"log"`
}

type EngineConfig struct {
	Path       string        `mapstructure:"path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	OutputMode string        `mapstructure:"output_mode"`
	Prompt     string        `mapstructure:"prompt"`
	Threads    int           `mapstructure:"threads"`
}

type AudioConfig struct {
	Backend     string        `mapstructure:"backend"`
	Input       string        `mapstructure:"input"`
	SampleRate  int           `mapstructure:"sample_rate"`
	Channels    int           `mapstructure:"channels"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	SilenceDBFS float64       `mapstructure:"silence_dbfs"`
}

type OutputConfig struct {
	AutoPaste           bool          `mapstructure:"auto_paste"`
	PasteCommand        string        `mapstructure:"paste_command"`
	PasteDelay          time.Duration `mapstructure:"paste_delay"`
	KeepTrailingNewline bool          `mapstructure:"keep_trailing_newline"`
	CopyEmpty           bool          `mapstructure:"copy_empty"`
}

type FeedbackConfig struct {
	Sound  bool `mapstructure:"sound"`
	Notify bool `mapstructure:"notify"`
}

type LogConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	JSON    bool   `mapstructure:"json"`
	File    string `mapstructure:"file"`
}

// LoadOptions says where to look. File is an explicit --config path and must
// exist; without it the per-user config file is read when present.
type LoadOptions struct {
	File  string
	Flags *pflag.FlagSet
	// FlagKeys maps config keys to flag names in Flags.
	FlagKeys map[string]string
	Env      platform.Env
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, explicit := strings.TrimSpace(opts.File), true
	if file == "" {
		explicit = false
		if resolved, err := opts.Env.ConfigFile(); err == nil {
			file = resolved
		}
	}
	if file != "" {
		if err := readFile(v, file, explicit); err != nil {
			return Config{}, err
		}
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Language = SanitizeLanguage(cfg.Language)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(v *viper.Viper, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hotkey", hotkey.DefaultBinding)
	v.SetDefault("language", "auto")
	v.SetDefault("model", whisper.DefaultModel)
	v.SetDefault("model_dir", "")
	v.SetDefault("auto_download", true)
	v.SetDefault("temp_dir", "")

	v.SetDefault("engine.path", "")
	v.SetDefault("engine.timeout", whisper.DefaultTimeout)
	v.SetDefault("engine.output_mode", "auto")
	v.SetDefault("engine.prompt", "")
	v.SetDefault("engine.threads", 0)

	v.SetDefault("audio.backend", "auto")
	v.SetDefault("audio.input", "")
	v.SetDefault("audio.sample_rate", record.DefaultSampleRate)
	v.SetDefault("audio.channels", record.DefaultChannels)
	v.SetDefault("audio.max_duration", time.Duration(0))
	v.SetDefault("audio.silence_dbfs", -65.0)

	v.SetDefault("output.auto_paste", false)
	v.SetDefault("output.paste_command", "")
	v.SetDefault("output.paste_delay", 100*time.Millisecond)
	v.SetDefault("output.keep_trailing_newline", false)
	v.SetDefault("output.copy_empty", false)

	v.SetDefault("feedback.sound", true)
	v.SetDefault("feedback.notify", false)

	v.SetDefault("log.verbose", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
}

func (c Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels))
	}
	if c.Audio.MaxDuration < 0 {
		errs = append(errs, errors.New("audio.max_duration must not be negative"))
	}
	if !slices.Contains(record.BackendNames(), c.Audio.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of %s", c.Audio.Backend, strings.Join(record.BackendNames(), "|")))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout))
	}
	if c.Engine.Threads < 0 {
		errs = append(errs, fmt.Errorf("engine.threads must not be negative, got %d", c.Engine.Threads))
	}
	if _, err := whisper.ParseOutputMode(c.Engine.OutputMode); err != nil {
		errs = append(errs, fmt.Errorf("engine.output_mode: %w", err))
	}
	if c.Output.PasteDelay < 0 {
		errs = append(errs, errors.New("output.paste_delay must not be negative"))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if _, err := hotkey.ParseBinding(c.Hotkey); err != nil {
		errs = append(errs, fmt.Errorf("hotkey: %w", err))
	}

	return errors.Join(errs...)
}

// SanitizeLanguage normalises a language hint; empty means auto.
func SanitizeLanguage(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "auto"
	}
	return value
}

// PasteArgv splits output.paste_command into an argv; empty autodetects.
func (c Config) PasteArgv() []string {
	return strings.Fields(c.Output.PasteCommand)
}
