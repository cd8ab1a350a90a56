// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/iris/internal/config"
)

// HandleConfig runs "iris config [show|path|init|get|set]". It works on the
// config file directly, so it never needs the model or the store.
func HandleConfig(w io.Writer, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(w, args)
	case "path":
		path, err := configFilePath(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, path)
		return nil
	case "init":
		return configInit(w, args)
	case "get":
		return configGet(w, args)
	case "set":
		return configSet(w, args)
	default:
		return usageError(CmdConfig, fmt.Sprintf("unknown subcommand %q (expected show, path, init, get or set)", args.Subcommand))
	}
}

func configShow(w io.Writer, args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		redacted := cfg.Clone()
		if redacted.Gateway.OpenAIAPIKey != "" {
			redacted.Gateway.OpenAIAPIKey = "[REDACTED]"
		}
		return outputJSON(w, redacted)
	}
	fmt.Fprint(w, cfg.String())
	return nil
}

func configInit(w io.Writer, args Args) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !args.Force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := saveConfigFile(config.Default(), path); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Wrote"), path)
	}
	return nil
}

func configGet(w io.Writer, args Args) error {
	if args.ConfigKey == "" {
		return usageError(CmdConfig, "config get needs a key, one of: "+strings.Join(config.Keys(), ", "))
	}
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return usageError(CmdConfig, err.Error())
	}
	if args.ConfigKey == "gateway.openai_api_key" && value != "" {
		value = "[REDACTED]"
	}
	fmt.Fprintln(w, value)
	return nil
}

// configSet edits the file on disk. Environment overrides are not applied,
// so they are never written back.
func configSet(w io.Writer, args Args) error {
	if args.ConfigKey == "" {
		return usageError(CmdConfig, "usage: iris config set KEY VALUE")
	}
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return usageError(CmdConfig, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Set"), args.ConfigKey)
	}
	return nil
}

// configFilePath is --config when given, otherwise the default TOML file.
func configFilePath(args Args) (string, error) {
	if args.Config != "" {
		return filepath.Abs(args.Config)
	}
	return config.ConfigPathTOML()
}

func loadConfigFile(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.LoadJSON(path)
	}
	return config.LoadTOML(path)
}

func saveConfigFile(cfg *config.Config, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return cfg.SaveJSON(path)
	}
	return cfg.SaveTOML(path)
}
