package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ADUPLOAD_CONCURRENCY or ADUPLOAD_LOG_LEVEL.
const EnvPrefix = "ADUPLOAD"

// Load builds a Config from defaults, an optional config file and the
// environment.  When path is empty, config.json or config.yaml in the working
// directory is used if present.  A .env file in the working directory is
// loaded first; a missing one is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve overrides for
// nested fields during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_delay", d.RetryDelay)
	v.SetDefault("api_base_url", d.APIBaseURL)
	v.SetDefault("api_version", d.APIVersion)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_image_bytes", d.MaxImageBytes)
	v.SetDefault("max_width", d.MaxWidth)
	v.SetDefault("max_height", d.MaxHeight)
	v.SetDefault("max_input_pixels", d.MaxInputPixels)
	v.SetDefault("supported_formats", d.SupportedFormats)
	v.SetDefault("lossy_quality", d.LossyQuality)
	v.SetDefault("codec", string(d.Codec))
	v.SetDefault("max_entry_bytes", d.MaxEntryBytes)
	v.SetDefault("chunk_size", d.ChunkSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_files", d.Log.MaxFiles)

	v.SetDefault("report.default_format", d.Report.DefaultFormat)
	v.SetDefault("report.mirror.enabled", d.Report.Mirror.Enabled)
	v.SetDefault("report.mirror.endpoint", d.Report.Mirror.Endpoint)
	v.SetDefault("report.mirror.access_key", d.Report.Mirror.AccessKey)
	v.SetDefault("report.mirror.secret_key", d.Report.Mirror.SecretKey)
	v.SetDefault("report.mirror.bucket", d.Report.Mirror.Bucket)
	v.SetDefault("report.mirror.region", d.Report.Mirror.Region)
	v.SetDefault("report.mirror.prefix", d.Report.Mirror.Prefix)
	v.SetDefault("report.mirror.use_ssl", d.Report.Mirror.UseSSL)

	v.SetDefault("token.file", d.Token.File)
	v.SetDefault("token.encrypt", d.Token.Encrypt)
	v.SetDefault("token.refresh_interval", d.Token.RefreshInterval)
}
