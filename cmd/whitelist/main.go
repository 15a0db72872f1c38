// Command whitelist manages the emails allowed to register.
//
//	whitelist add ana@example.com
//	whitelist remove ana@example.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"planahead/internal/auth"
	"planahead/internal/config"
	"planahead/internal/db"
	"planahead/internal/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: whitelist add|remove <email>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 2 {
		flag.Usage()
		return errors.New("expected a command and an email")
	}
	cmd, email := args[0], auth.NormalizeEmail(args[1])

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	gdb, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&auth.WhitelistEntry{}); err != nil {
		return err
	}
	wl := &auth.Whitelist{DB: gdb}

	switch cmd {
	case "add":
		if err := wl.Add(ctx, email); err != nil {
			return err
		}
		log.Info("email whitelisted", zap.String("email", email))
	case "remove":
		if err := wl.Remove(ctx, email); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return fmt.Errorf("%s is not whitelisted", email)
			}
			return err
		}
		log.Info("email removed from whitelist", zap.String("email", email))
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
