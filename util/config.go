package util

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads name.yaml from path and CAB_* environment variables into out.
// The current values of out act as defaults, so out must use the same json and mapstructure keys.
// A missing file is not an error.
func LoadConfig(path, name string, out interface{}) error {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := make(map[string]interface{})
	bs, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bs, &defaults); err != nil {
		return err
	}
	// env variables are only looked up for keys viper already knows
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return v.Unmarshal(out)
}
