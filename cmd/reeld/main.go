// Command reeld runs the reel daemon in the foreground without the CLI
// wrapper, for service managers that supervise the process directly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"reel/internal/config"
	"reel/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
