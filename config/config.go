// Copyright (C) 2025 Quartzdata, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the converter. Flags override these
// values; they exist so batch deployments can configure runs through the
// environment or a config file.
type Config struct {
	Convert ConvertConfig `mapstructure:"convert"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ConvertConfig carries the conversion defaults.
type ConvertConfig struct {
	BatchSize         int    `mapstructure:"batch_size"`
	SampleSize        int    `mapstructure:"sample_size"`
	RecordsPerFile    int64  `mapstructure:"records_per_file"`
	MaxOpenPartitions int    `mapstructure:"max_open_partitions"`
	Compression       string `mapstructure:"compression"`
	CoercionPolicy    string `mapstructure:"coercion_policy"`
	WriteChecksums    bool   `mapstructure:"write_checksums"`
	Stats             bool   `mapstructure:"stats"`
	TmpDir            string `mapstructure:"tmp_dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func defaultConfig() *Config {
	return &Config{
		Convert: ConvertConfig{
			BatchSize:         1000,
			SampleSize:        1000,
			MaxOpenPartitions: 128,
			Compression:       "zstd",
			CoercionPolicy:    "tolerant",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "PARQCONV" and the dot character in
// keys is replaced by an underscore. For example, "convert.batch_size"
// becomes "PARQCONV_CONVERT_BATCH_SIZE".
func Load() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PARQCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
