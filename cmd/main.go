package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tensorpay/unipay/handler"
	"github.com/tensorpay/unipay/infra/config"
	"github.com/tensorpay/unipay/infra/response"
	"github.com/tensorpay/unipay/provider"
	"github.com/tensorpay/unipay/provider/alipay"
	"github.com/tensorpay/unipay/provider/bankpay"
	"github.com/tensorpay/unipay/provider/stripecard"
	"github.com/tensorpay/unipay/provider/wechatpay"
	"github.com/tensorpay/unipay/router"
)

func main() {
	_ = godotenv.Load(".env")

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	registry := provider.NewRegistry()
	if err := registerProviders(registry, logger); err != nil {
		logger.Fatal("provider registration failed", zap.Error(err))
	}

	service := provider.NewService(registry, logger)
	paymentHandler := handler.NewPaymentHandler(service, config.App().Validator)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		response.Success(w, http.StatusOK, "Service is healthy", map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"methods":   service.SupportedMethods(),
		})
	})

	router.Routes(r, paymentHandler)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	port := config.GetEnv("APP_PORT", "9999")
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	logger.Info("API is running", zap.String("port", port))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// registerProviders builds an adapter for each provider the deployment enables
// and registers it. Misconfiguration here is fatal: a provider that cannot be
// constructed must not be silently skipped.
func registerProviders(registry *provider.Registry, logger *zap.Logger) error {
	gatewayTimeout := time.Duration(config.GetIntEnv("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second

	for _, name := range config.EnabledProviders() {
		var (
			adapter provider.PaymentProvider
			err     error
		)

		switch name {
		case "alipay":
			adapter, err = alipay.New(alipay.Config{
				AppID:     config.GetEnv("ALIPAY_APP_ID", ""),
				SecretKey: config.GetEnv("ALIPAY_SECRET_KEY", ""),
				NotifyURL: config.GetEnv("ALIPAY_NOTIFY_URL", ""),
				ReturnURL: config.GetEnv("ALIPAY_RETURN_URL", ""),
			}, provider.NewHTTPGateway(provider.HTTPGatewayConfig{
				BaseURL: config.GetEnv("ALIPAY_GATEWAY_URL", "https://openapi.alipay.com"),
				Timeout: gatewayTimeout,
			}), logger)
		case "wechat":
			adapter, err = wechatpay.New(wechatpay.Config{
				AppID:     config.GetEnv("WECHAT_APP_ID", ""),
				MchID:     config.GetEnv("WECHAT_MCH_ID", ""),
				APIKey:    config.GetEnv("WECHAT_API_KEY", ""),
				NotifyURL: config.GetEnv("WECHAT_NOTIFY_URL", ""),
			}, provider.NewHTTPGateway(provider.HTTPGatewayConfig{
				BaseURL: config.GetEnv("WECHAT_GATEWAY_URL", "https://api.mch.weixin.qq.com"),
				Timeout: gatewayTimeout,
			}), logger)
		case "bank":
			adapter, err = bankpay.New(bankpay.Config{
				MerchantID:  config.GetEnv("BANK_MERCHANT_ID", ""),
				MerchantKey: config.GetEnv("BANK_MERCHANT_KEY", ""),
				NotifyURL:   config.GetEnv("BANK_NOTIFY_URL", ""),
				ReturnURL:   config.GetEnv("BANK_RETURN_URL", ""),
			}, provider.NewHTTPGateway(provider.HTTPGatewayConfig{
				BaseURL: config.GetEnv("BANK_GATEWAY_URL", ""),
				Timeout: gatewayTimeout,
			}), logger)
		case "card":
			adapter, err = stripecard.New(stripecard.Config{
				SecretKey:     config.GetEnv("STRIPE_SECRET_KEY", ""),
				WebhookSecret: config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			}, logger)
		default:
			return fmt.Errorf("unknown provider in UNIPAY_PROVIDERS: %q", name)
		}

		if err != nil {
			return fmt.Errorf("configure provider %s: %w", name, err)
		}
		if err := registry.Register(adapter); err != nil {
			return err
		}
		logger.Info("registered payment provider", zap.String("provider", name))
	}

	return nil
}
