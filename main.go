package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/OliveiraNt/kviz/cmd"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// findConfigPath returns the first existing config file among the usual
// locations, or "" when there is none.
func findConfigPath() string {
	names := []string{"config.yml", "config.yaml"}
	candidates := []string{}

	for _, n := range names {
		candidates = append(candidates, "./"+n)
	}

	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			for _, n := range names {
				candidates = append(candidates, filepath.Join(appdata, "kviz", n))
			}
		}
		if home != "" {
			for _, n := range names {
				candidates = append(candidates, filepath.Join(home, "kviz", n))
			}
		}
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			for _, n := range names {
				candidates = append(candidates, filepath.Join(xdg, "kviz", n))
			}
		}
		if home != "" {
			for _, n := range names {
				candidates = append(candidates, filepath.Join(home, ".config", "kviz", n))
			}
		}
		for _, n := range names {
			candidates = append(candidates, filepath.Join("/etc", "kviz", n))
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func main() {
	_ = godotenv.Load()
	utils.InitLogger()

	flags, fs, err := cmd.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		fs.PrintDefaults()
		os.Exit(2)
	}

	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("KVIZ_CONFIG")
	}
	if configPath == "" {
		configPath = findConfigPath()
	}

	cfg, err := cmd.LoadConfig(configPath, flags)
	if err != nil {
		utils.Logger.Fatal("invalid configuration", "path", configPath, "err", err)
	}
	if cfg.LogLevel != "" {
		utils.SetLogLevel(cfg.LogLevel)
	}
	utils.Logger.Info("configuration loaded", "path", configPath, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.StartWeb(ctx, cfg, configPath, flags); err != nil {
		utils.Logger.Fatal("kviz terminated", "err", err)
	}
}
