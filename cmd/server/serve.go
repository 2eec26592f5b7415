package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lexpost/config"
	"lexpost/internal/auth"
	"lexpost/internal/database"
	"lexpost/internal/logger"
	"lexpost/internal/pubsub"
	"lexpost/internal/router"
	"lexpost/internal/service"
	"lexpost/internal/ws"
	"lexpost/pkg/cloudinary"
	"lexpost/pkg/generator"
	"lexpost/pkg/payment"
)

func newServeCommand() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "run schema migrations before serving")
	return cmd
}

// loadConfig loads configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func serve(parent context.Context, autoMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if autoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	storage, err := cloudinary.New(cloudinary.Config{
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
	})
	if err != nil {
		return fmt.Errorf("cloudinary: %w", err)
	}

	idp, err := identityProvider(cfg.Auth)
	if err != nil {
		return err
	}
	provider, err := paymentProvider(cfg.Payment)
	if err != nil {
		return err
	}

	var gen service.LetterGenerator
	if cfg.AI.APIKey != "" {
		gen = generator.New(generator.Config{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
		})
	} else {
		log.Warn("ai.api_key not set, letter generation disabled")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(logger.WithComponent("ws"))
	var events service.EventPublisher = hub
	if cfg.Redis.Addr != "" {
		client, err := pubsub.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		bridge := pubsub.NewRedisBridge(client, cfg.Redis.Channel, hub, logger.WithComponent("pubsub"))
		go bridge.Run(ctx)
		events = bridge
		log.Info("change events relayed through redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	engine, err := router.Setup(cfg, db, router.Deps{
		Identity:  idp,
		Payment:   provider,
		Generator: gen,
		Email:     service.NewEmailSender(cfg.Email, logger.WithComponent("email")),
		Storage:   storage,
		Events:    events,
		Hub:       hub,
		Log:       log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"auth", cfg.Auth.Provider,
			"payment", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

func identityProvider(cfg config.AuthConfig) (auth.IdentityProvider, error) {
	switch cfg.Provider {
	case "", "jwt":
		if cfg.JWTSecret == "" {
			return nil, errors.New("auth.jwt_secret is required for the jwt provider")
		}
		return auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer), nil
	case "userinfo":
		if cfg.UserInfoURL == "" {
			return nil, errors.New("auth.userinfo_url is required for the userinfo provider")
		}
		return auth.NewUserInfoProvider(cfg.UserInfoURL, &http.Client{Timeout: 10 * time.Second}), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

func paymentProvider(cfg config.PaymentConfig) (payment.Provider, error) {
	switch cfg.Provider {
	case "", "simulated":
		return &payment.SimulatedProvider{}, nil
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, errors.New("payment.stripe_secret_key is required for the stripe provider")
		}
		if cfg.WebhookSecret == "" {
			slog.Warn("payment.webhook_secret not set, every webhook will be rejected")
		}
		return payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			PriceIDs: map[string]string{
				"one_letter":   cfg.StripePriceIDs.OneLetter,
				"four_monthly": cfg.StripePriceIDs.FourMonthly,
				"eight_yearly": cfg.StripePriceIDs.EightYearly,
			},
		}), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
