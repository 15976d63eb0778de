package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/quillsign/quillsign/app/controllers"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/artifacts"
	"github.com/quillsign/quillsign/internal/pkg/audit"
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
	"github.com/quillsign/quillsign/internal/pkg/database"
	"github.com/quillsign/quillsign/internal/pkg/env"
	"github.com/quillsign/quillsign/internal/pkg/finalize"
	"github.com/quillsign/quillsign/internal/pkg/mail"
	"github.com/quillsign/quillsign/internal/pkg/payments"
	"github.com/quillsign/quillsign/internal/pkg/router"
	"github.com/quillsign/quillsign/internal/pkg/signing"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())

	repos := repository.GetGlobalRepositories()
	baseURL := env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000")

	auditor := audit.NewRecorder(repos.Event)
	mailer := mail.NewSMTPMailer()
	tokens := signing.NewManager(repos.Contract, signing.PolicyFromEnv())

	flow := contractflow.NewService(contractflow.Config{
		Repos:   repos,
		Tokens:  tokens,
		Auditor: auditor,
		Mailer:  mailer,
		BaseURL: baseURL,
	})

	pay := payments.NewService(payments.Config{
		Repos:    repos,
		Gateway:  payments.NewGatewayFromEnv(),
		Auditor:  auditor,
		Mailer:   mailer,
		BaseURL:  baseURL,
		Currency: env.GetEnv("CHECKOUT_CURRENCY", "usd"),
	})

	storeCfg, err := artifacts.LoadConfig()
	if err != nil {
		log.Fatalf("artifact store config: %v", err)
	}
	store, err := artifacts.NewS3Store(storeCfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	fin := finalize.NewService(finalize.Config{
		Repos:    repos,
		Store:    store,
		StoreCfg: storeCfg,
		Auditor:  auditor,
		Mailer:   mailer,
	})

	controllers.InitControllers(&controllers.Services{
		Flow:     flow,
		Payments: pay,
		Finalize: fin,
	})

	app := fiber.New(fiber.Config{
		AppName:   "quillsign",
		BodyLimit: 4 * 1024 * 1024,
	})

	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app
}
