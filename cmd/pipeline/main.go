package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "pipeline"
	app.Usage = "normalize wine export tables and derive trade metrics"
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		runCommand,
		countriesCommand,
		runsCommand,
	}
	return app
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Printf("❌ %v", err)
		cancel()
		os.Exit(1)
	}
}
