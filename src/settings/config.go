package settings

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig resolves settings from the environment and an optional config
// file. Environment variables use the MONGOMAP_ prefix (e.g. MONGOMAP_HOST);
// an .env file, if present, is loaded first so it can supply those variables.
// Values already set on the Arguments (e.g. from command line flags bound to
// viper) take precedence over file values.
func LoadConfig(args *Arguments) error {
	envFile := args.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("could not load env file %s: %w", envFile, err)
		}
	}

	viper.SetEnvPrefix("MONGOMAP")
	viper.AutomaticEnv()

	if args.ConfigFile != "" {
		viper.SetConfigFile(args.ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file %s: %w", args.ConfigFile, err)
		}
	}

	if v := viper.GetString("host"); v != "" {
		args.Host = v
	}
	if v := viper.GetInt("port"); v != 0 {
		args.Port = v
	}
	if v := viper.GetString("username"); v != "" {
		args.Username = v
	}
	if v := viper.GetString("password"); v != "" {
		args.Password = v
	}
	if v := viper.GetString("auth-database"); v != "" {
		args.AuthDatabase = v
	}
	if v := viper.GetInt("page-size"); v != 0 {
		args.PageSize = v
	}
	if v := viper.GetString("unknown-field-handling"); v != "" {
		args.UnknownFieldHandling = v
	}
	if v := viper.GetString("type-checking"); v != "" {
		args.TypeChecking = v
	}
	if viper.IsSet("test-mode") {
		args.TestMode = viper.GetBool("test-mode")
	}
	if viper.IsSet("debug") {
		args.Debug = viper.GetBool("debug")
	}

	if args.Port < 1 || args.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", args.Port)
	}
	return nil
}
