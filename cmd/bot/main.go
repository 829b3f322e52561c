// Command bot runs the sleep-tracking gateway: the HTTP surface the chat
// adapter talks to, plus the background sweep that promotes stale pending
// goodnights and generates the weekly summary.
//
// Exit codes: 0 = clean shutdown, 1 = error.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dormouse-bot/dormouse/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
