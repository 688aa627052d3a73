package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"orbitdb/go-kvstore/kvstore"
	"orbitdb/go-kvstore/storage"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "Storage backend (leveldb, pebble); memory and datastore do not persist between runs and are rejected",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Storage location on disk",
	}
	namespaceFlag = cli.StringFlag{
		Name:  "namespace",
		Usage: "Namespace keys are qualified with",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Usage: "Number of values kept in the read cache (0 disables it)",
	}
	strictFlag = cli.BoolFlag{
		Name:  "strict",
		Usage: "Reject namespaces containing the key separator",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level (debug, info, warn, error)",
		Value: "warn",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type nskvConfig struct {
	Name            string
	Namespace       string
	StrictNamespace bool
	Storage         storage.Config
}

func defaultConfig() nskvConfig {
	return nskvConfig{
		Name:    kvstore.DefaultName,
		Storage: storage.DefaultConfig,
	}
}

func loadConfig(file string, cfg *nskvConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads defaults, then the config file, then applies flags.
func makeConfig(ctx *cli.Context) (nskvConfig, error) {
	cfg := defaultConfig()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.GlobalIsSet(backendFlag.Name) {
		cfg.Storage.Backend = ctx.GlobalString(backendFlag.Name)
	}
	if ctx.GlobalIsSet(dataDirFlag.Name) {
		cfg.Storage.Path = ctx.GlobalString(dataDirFlag.Name)
	}
	if ctx.GlobalIsSet(namespaceFlag.Name) {
		cfg.Namespace = ctx.GlobalString(namespaceFlag.Name)
	}
	if ctx.GlobalIsSet(cacheFlag.Name) {
		cfg.Storage.CacheSize = ctx.GlobalInt(cacheFlag.Name)
	}
	if ctx.GlobalBool(strictFlag.Name) {
		cfg.StrictNamespace = true
	}
	return cfg, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}
