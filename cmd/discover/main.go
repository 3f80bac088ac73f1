// Package main refreshes the daily discovery snapshot.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/buildstreak-agent/internal/app"
)

func main() {
	flags, err := app.ParseFlags(flag.CommandLine, os.Args[1:], false)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DISCOVER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.JobDiscover, flags); err != nil {
		stop()
		log.Fatalf("discover: %v", err)
	}
}
