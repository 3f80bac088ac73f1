// Package main answers new replies under the agent's recent posts.
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
	log.SetPrefix("[REPLY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.JobReply, flags); err != nil {
		stop()
		log.Fatalf("reply: %v", err)
	}
}
