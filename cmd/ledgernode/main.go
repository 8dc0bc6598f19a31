package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"ledgercore/block"
	"ledgercore/log"
	"ledgercore/node"
	"ledgercore/work"
)

var app = newApp()

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "ledgernode"
	app.Usage = "run the block ingestion pipeline"
	app.Flags = nodeFlags
	app.Action = run
	app.Commands = []cli.Command{
		{
			Action:    dumpConfig,
			Name:      "dumpconfig",
			Usage:     "show configuration values",
			ArgsUsage: "",
			Flags:     nodeFlags,
		},
	}
	return app
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpConfig(ctx *cli.Context) error {
	cfg := makeNodeConfig(ctx)
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func run(ctx *cli.Context) error {
	cfg := makeNodeConfig(ctx)

	if cfg.LedgerLogging {
		log.Root.Info("starting ledgernode", "batch_size", cfg.BlockProcessor.BatchSize, "full_size", cfg.BlockProcessor.FullSize)
	}

	generator := func(ctx context.Context, req work.Request) (uint64, bool) {
		for nonce := uint64(0); ; nonce++ {
			select {
			case <-ctx.Done():
				return 0, false
			default:
			}
			if block.ValidateWork(req.Root, nonce, req.Difficulty) {
				return nonce, true
			}
		}
	}

	n := node.New(cfg, nil, nil, nil, nil, nil, generator, nil)
	n.Start()
	defer n.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
