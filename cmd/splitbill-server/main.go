package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/api"
	"github.com/splitbill/splitbill-server/internal/config"
	"github.com/splitbill/splitbill-server/internal/integration"
	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/server"
	"github.com/splitbill/splitbill-server/internal/storage"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/splitbill-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Key used to seal stored mail OAuth tokens
	tokenKey := loadTokenKey(cfg)

	// Mail API client
	mailClient := mail.NewHTTPClient(&cfg.Mail)

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WaitGroup for services
	var wg sync.WaitGroup

	// Optional NATS connection
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("splitbill-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
			nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
				log.Error().
					Err(err).
					Str("subject", sub.Subject).
					Msg("NATS error")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	// Billing event publisher (no-op without NATS)
	publisher := server.NewEventPublisher(nc)

	// Payment reconciler shared by the API and the mail subscriber
	reconciler := server.NewReconciler(cfg, store, mailClient, publisher, tokenKey)

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, store, mailClient, reconciler, publisher)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	if nc != nil {
		// Inbound mail subscriber
		subscriber := server.NewMailSubscriber(nc, store, reconciler)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("Starting mail subscriber")
			if err := subscriber.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Mail subscriber stopped")
			}
		}()

		// Billing event forwarder (webhook / MQTT)
		forwarder := integration.NewForwarderService(nc, store)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := forwarder.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Forwarder service stopped")
			}
		}()
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Split bill server stopped")
}

// loadTokenKey decodes the configured token sealing key, generating an
// ephemeral one when unset. Tokens sealed with an ephemeral key do not
// survive a restart.
func loadTokenKey(cfg *config.Config) []byte {
	if cfg.Mail.TokenKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Mail.TokenKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid mail.token_key, expected base64")
		}
		if len(key) != 16 && len(key) != 24 && len(key) != 32 {
			log.Fatal().Int("len", len(key)).Msg("mail.token_key must decode to 16, 24 or 32 bytes")
		}
		return key
	}

	key, err := crypto.GenerateRandomBytes(32)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token key")
	}
	log.Warn().Msg("mail.token_key not set, using an ephemeral key; stored mail tokens will not survive a restart")
	return key
}
