// Command techenrich enriches scraped university technology listings with
// patent status, a field classification and an opportunity assessment.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		cancel()
		log.SetFlags(0)
		log.Fatal(err)
	}
}
