// Package main runs one cadence-gated check-in post.
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
	flags, err := app.ParseFlags(flag.CommandLine, os.Args[1:], true)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[POST] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.JobPost, flags); err != nil {
		stop()
		log.Fatalf("post: %v", err)
	}
}
