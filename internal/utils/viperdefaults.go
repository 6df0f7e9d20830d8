package utils

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Set the viper defaults for a cadence application.
// For use in the examples; applications embedding the engine will want
// their own configuration surface.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("periodframes", 480)
}

// LoadConfig reads configFilePath into viper on top of the defaults. A
// missing config file is fine, the defaults carry; a malformed one is not.
func LoadConfig(configFilePath string) {
	SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}
