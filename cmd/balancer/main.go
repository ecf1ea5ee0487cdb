// Command balancer runs the TCP line-protocol load balancer: the
// backend registry, the weighted-RR and min-RTT schedulers, the probe
// loop, the backend and client channels, and the admin console.
package main

import (
	"context"
	"log"

	"github.com/pranshu258/linebalancer/internal/balancer"
	"github.com/pranshu258/linebalancer/internal/config"
)

func main() {
	cfg := config.NewFromEnv()
	if err := config.SetupLogging(cfg); err != nil {
		log.Fatalf("balancer: logging setup failed: %v", err)
	}

	log.Println("starting balancer...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := balancer.New(ctx, cfg)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("balancer: %v", err)
	}
}
