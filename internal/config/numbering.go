package config

import (
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const maxNumberWidth = 18

// NumberFormat describes how a counter value becomes a display identifier.
type NumberFormat struct {
	Prefix string `mapstructure:"prefix"`
	Width  int    `mapstructure:"width"`
}

// NumberingConfig maps counter keys to their identifier format.
type NumberingConfig struct {
	Formats map[string]NumberFormat `mapstructure:"formats"`
}

func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		Formats: map[string]NumberFormat{
			"customer":       {Prefix: "CUS_ID", Width: 5},
			"quotation":      {Prefix: "QT-", Width: 7},
			"invoice":        {Prefix: "INV-", Width: 7},
			"purchase_order": {Prefix: "PO-", Width: 7},
			"contract":       {Prefix: "TVS-CON", Width: 7},
		},
	}
}

type NumberingConfigHolder struct {
	current atomic.Value // holds NumberingConfig
}

// NewStaticNumberingConfigHolder returns a holder that never reloads.
func NewStaticNumberingConfigHolder(cfg NumberingConfig) *NumberingConfigHolder {
	holder := &NumberingConfigHolder{}
	holder.current.Store(mergeDefaults(cfg))
	return holder
}

func NewNumberingConfigHolder(log *zap.Logger) (*NumberingConfigHolder, error) {
	log = log.Named("numbering.config")
	v := viper.New()

	v.SetConfigName("numbering")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/docflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read numbering config")
		}
		fileFound = false
	}

	cfg, err := decodeNumbering(v)
	if err != nil {
		return nil, err
	}

	holder := &NumberingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeNumbering(v)
		if err != nil {
			log.Warn("invalid numbering config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("numbering config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *NumberingConfigHolder) Get() NumberingConfig {
	return h.current.Load().(NumberingConfig)
}

// Lookup returns the format configured for key.
func (h *NumberingConfigHolder) Lookup(key string) (NumberFormat, bool) {
	f, ok := h.Get().Formats[key]
	return f, ok
}

func decodeNumbering(v *viper.Viper) (NumberingConfig, error) {
	var cfg NumberingConfig
	if err := v.UnmarshalKey("numbering", &cfg); err != nil {
		return NumberingConfig{}, errors.Wrap(err, "decode numbering config")
	}
	cfg = mergeDefaults(cfg)
	if err := ValidateNumberingConfig(cfg); err != nil {
		return NumberingConfig{}, err
	}
	return cfg, nil
}

func mergeDefaults(cfg NumberingConfig) NumberingConfig {
	merged := DefaultNumberingConfig()
	for key, f := range cfg.Formats {
		merged.Formats[strings.ToLower(strings.TrimSpace(key))] = f
	}
	return merged
}

func ValidateNumberingConfig(cfg NumberingConfig) error {
	for key, f := range cfg.Formats {
		if strings.TrimSpace(f.Prefix) == "" {
			return errors.Newf("numbering.formats.%s.prefix cannot be empty", key)
		}
		if f.Width < 1 || f.Width > maxNumberWidth {
			return errors.Newf("numbering.formats.%s.width must be between 1 and %d", key, maxNumberWidth)
		}
	}
	return nil
}
