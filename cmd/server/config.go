package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	defaultListenAddr = "localhost:8080"
	defaultDBPath     = "caisse.db"
)

type Config struct {
	// Address on which the ledger service will listen
	ListenAddr string

	// SQLite database path. ":memory:" runs a throwaway store.
	DBPath string
}

func NewConfig() *Config {
	return &Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
	}
}

// LoadDotEnv reads a '.env' file from the working directory, if present.
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":   setString(&c.ListenAddr),
		"DATABASE_PATH": setString(&c.DBPath),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("ledger-server", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DBPath, "db", "d", c.DBPath, "SQLite database path")

	return fs.Parse(args)
}
