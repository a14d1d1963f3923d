package main

import (
	"campuscert/chain"
	"campuscert/config"
	"campuscert/contentstore"
	controllers "campuscert/controllers/certificate"
	"campuscert/database"
	"campuscert/issuance"
	"campuscert/renderer"
	certificateRoutes "campuscert/routers/certificateRoutes"
	"campuscert/utils"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/goodsign/monday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	database.ConnectDb()

	env := chain.Environment{RPCURL: cfg.RpcURL, PrivateKey: cfg.PrivateKey}
	if cfg.WalletProviderURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		wallet, err := rpc.DialContext(ctx, cfg.WalletProviderURL)
		cancel()
		if err != nil {
			log.Printf("Warning: wallet provider %s unreachable, using server key: %v", cfg.WalletProviderURL, err)
		} else {
			defer wallet.Close()
			env.Wallet = wallet
		}
	}

	submitter, err := chain.NewSubmitter(chain.Config{
		ContractAddress:     common.HexToAddress(cfg.ContractAddress),
		ChainID:             cfg.ChainIDBig(),
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		PollInterval:        cfg.ConfirmationPollInterval,
	}, env)
	if err != nil {
		log.Fatalf("Failed to initialize chain submitter: %v", err)
	}

	store := contentstore.New(contentstore.Config{
		APIURL:     cfg.PinataApiURL,
		JWT:        cfg.PinataJWT,
		GatewayURL: cfg.PinataGatewayURL,
		Timeout:    cfg.StoreTimeout,
	})

	locale := monday.Locale(cfg.CertLocale)
	render := renderer.Fallback{
		Primary:   renderer.Rich{FontDir: cfg.CertFontDir, Locale: locale},
		Secondary: renderer.Simple{Locale: locale},
	}

	orchestrator := issuance.New(store, render, submitter, issuance.Options{
		GenericImageURI: cfg.GenericImageURI,
		IssuerName:      cfg.IssuerName,
	})
	controllers.Setup(orchestrator, submitter)

	scheduler, err := utils.InitializeReconcileScheduler(submitter, cfg.ReconcileSchedule)
	if err != nil {
		log.Fatalf("Failed to start reconciliation scheduler: %v", err)
	}
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		// Confirmation waits can take minutes.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ConfirmationTimeout + time.Minute,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	certificateRoutes.SetupCertificateRoutes(app)

	log.Printf("Server is running on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
