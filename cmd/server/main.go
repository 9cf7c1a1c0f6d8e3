package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/server"
)

// config is populated from the environment; flags override it.
type config struct {
	Addr         string  `env:"RELAY_ADDR" envDefault:":8080"`
	Users        string  `env:"RELAY_USERS" envDefault:"user:pass"`
	MessageRate  float64 `env:"RELAY_MSG_RATE" envDefault:"0"`
	MessageBurst int     `env:"RELAY_MSG_BURST" envDefault:"10"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "Listen address; additional addresses may follow as arguments")
	users := flag.String("users", cfg.Users, "Comma-separated user:pass credential pairs")
	msgRate := flag.Float64("msg-rate", cfg.MessageRate, "Max inbound chat messages per second per session (0 disables)")
	msgBurst := flag.Int("msg-burst", cfg.MessageBurst, "Burst size for the message rate limit")
	flag.Parse()

	creds, err := chat.ParseCredentials(*users)
	if err != nil {
		log.Fatalf("invalid credentials: %v", err)
	}

	// One server, and therefore one independent room, per listen address.
	addrs := append([]string{*addr}, flag.Args()...)

	var servers []*server.Server
	errChan := make(chan error, len(addrs))
	for _, a := range addrs {
		srv := server.New(server.Config{
			Addr:         a,
			Credentials:  creds,
			MessageRate:  rate.Limit(*msgRate),
			MessageBurst: *msgBurst,
		})
		servers = append(servers, srv)
		go func() {
			errChan <- srv.Start()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down...", sig)
		for _, srv := range servers {
			srv.Stop()
		}
	}

	log.Println("server stopped")
}
