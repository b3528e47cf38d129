package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// EnvFileVar names the variable that points at an optional dotenv file.
const EnvFileVar = "CONFIG_ENV_FILE"

const defaultEnvFile = ".env"

// Load fills cfg from the environment using `env` struct tags. A dotenv file
// (CONFIG_ENV_FILE, default .env) is read first when it exists; variables
// already set in the process environment win over the file.
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := LoadEnvFile(envFilePath()); err != nil {
		return err
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadEnvFile loads path into the process environment without overriding
// existing variables. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func envFilePath() string {
	if p, ok := os.LookupEnv(EnvFileVar); ok {
		return p
	}
	return defaultEnvFile
}
