// nskv reads and writes a namespaced key-value store from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	logging "github.com/ipfs/go-log/v2"
	"gopkg.in/urfave/cli.v1"

	"orbitdb/go-kvstore/kvstore"
	"orbitdb/go-kvstore/storage"
)

var (
	getCommand = cli.Command{
		Action:    get,
		Name:      "get",
		Usage:     "Print the JSON value stored under a key",
		ArgsUsage: "<key>",
	}
	setCommand = cli.Command{
		Action:    set,
		Name:      "set",
		Usage:     "Store a JSON value under a key",
		ArgsUsage: "<key> <json>",
	}
	deleteCommand = cli.Command{
		Action:    del,
		Name:      "delete",
		Usage:     "Remove a key",
		ArgsUsage: "<key>",
	}
	listCommand = cli.Command{
		Action:    list,
		Name:      "list",
		Usage:     "List keys starting with a prefix",
		ArgsUsage: "[prefix]",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "logical",
				Usage: "Strip the namespace from listed keys",
			},
		},
	}
	clearCommand = cli.Command{
		Action: clearKeys,
		Name:   "clear",
		Usage:  "Remove every key of the namespace",
	}
)

// errVolatileBackend rejects backends whose data is gone once the command exits.
var errVolatileBackend = errors.New("backend does not persist between runs")

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nskv"
	app.Usage = "namespaced key-value store"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		configFileFlag,
		backendFlag,
		dataDirFlag,
		namespaceFlag,
		cacheFlag,
		strictFlag,
		verbosityFlag,
	}
	app.Commands = []cli.Command{
		getCommand,
		setCommand,
		deleteCommand,
		listCommand,
		clearCommand,
		dumpConfigCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		lvl, err := logging.LevelFromString(ctx.GlobalString(verbosityFlag.Name))
		if err != nil {
			return err
		}
		logging.SetAllLoggers(lvl)
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(ctx *cli.Context, fn func(context.Context, *kvstore.NamespacedStore) error) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	switch cfg.Storage.Backend {
	case storage.BackendMemory, storage.BackendDatastore:
		return fmt.Errorf("%w: %q", errVolatileBackend, cfg.Storage.Backend)
	}
	open, err := storage.NewRegistry().Opener(cfg.Storage)
	if err != nil {
		return err
	}
	opts := []kvstore.Option{kvstore.WithName(cfg.Name)}
	if cfg.StrictNamespace {
		opts = append(opts, kvstore.WithStrictNamespace())
	}

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := kvstore.New(open, opts...)
	if err := s.Open(c, cfg.Namespace); err != nil {
		return err
	}
	err = fn(c, s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func requireArgs(ctx *cli.Context, n int) error {
	if len(ctx.Args()) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", ctx.Command.Name, n, len(ctx.Args()))
	}
	return nil
}

func get(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	key := ctx.Args().First()
	return withStore(ctx, func(c context.Context, s *kvstore.NamespacedStore) error {
		var value json.RawMessage
		found, err := s.Get(c, key, &value)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found", key)
		}
		_, err = fmt.Fprintln(ctx.App.Writer, string(value))
		return err
	})
}

func set(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	key, raw := ctx.Args().Get(0), ctx.Args().Get(1)
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	return withStore(ctx, func(c context.Context, s *kvstore.NamespacedStore) error {
		return s.Set(c, key, json.RawMessage(raw))
	})
}

func del(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	key := ctx.Args().First()
	return withStore(ctx, func(c context.Context, s *kvstore.NamespacedStore) error {
		return s.Delete(c, key)
	})
}

func list(ctx *cli.Context) error {
	if len(ctx.Args()) > 1 {
		return fmt.Errorf("list: expected at most 1 argument, got %d", len(ctx.Args()))
	}
	prefix := ctx.Args().First()
	return withStore(ctx, func(c context.Context, s *kvstore.NamespacedStore) error {
		listFn := s.List
		if ctx.Bool("logical") {
			listFn = s.ListLogical
		}
		keys, err := listFn(c, prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := fmt.Fprintln(ctx.App.Writer, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearKeys(ctx *cli.Context) error {
	return withStore(ctx, func(c context.Context, s *kvstore.NamespacedStore) error {
		return s.Clear(c)
	})
}
