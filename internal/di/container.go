package di

import (
	"time"

	"booking-engine/internal/database"
	"booking-engine/internal/handler"
	"booking-engine/internal/payment"
	"booking-engine/internal/redisclient"
	"booking-engine/internal/repository"
	"booking-engine/internal/service"
	"booking-engine/internal/worker"
)

// Container holds all dependencies for the booking engine
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redisclient.Client

	// Stores
	ShowingStore repository.ShowingStore
	HoldStore    repository.HoldStore

	// Collaborators
	EventPublisher service.EventPublisher
	PaymentGateway payment.Gateway

	// Services
	HoldService    service.HoldService
	ConfirmService service.ConfirmService
	ShowingService service.ShowingService

	// Workers
	Reaper *worker.Reaper

	// Handlers
	HealthHandler  *handler.HealthHandler
	BookingHandler *handler.BookingHandler
	AdminHandler   *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redisclient.Client
	ShowingStore   repository.ShowingStore
	HoldStore      repository.HoldStore
	EventPublisher service.EventPublisher
	PaymentGateway payment.Gateway

	HoldTTL          time.Duration
	MaxSeatsPerHold  int
	ReaperInterval   time.Duration
	ReaperBatchSize  int
	ConfirmRetention time.Duration
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		ShowingStore:   cfg.ShowingStore,
		HoldStore:      cfg.HoldStore,
		EventPublisher: cfg.EventPublisher,
		PaymentGateway: cfg.PaymentGateway,
	}

	// Initialize services
	c.HoldService = service.NewHoldService(
		c.ShowingStore,
		c.HoldStore,
		c.EventPublisher,
		&service.HoldServiceConfig{
			HoldTTL:         cfg.HoldTTL,
			MaxSeatsPerHold: cfg.MaxSeatsPerHold,
		},
	)
	c.ConfirmService = service.NewConfirmService(
		c.ShowingStore,
		c.HoldStore,
		c.PaymentGateway,
		c.EventPublisher,
		&service.ConfirmServiceConfig{
			ResultRetention: cfg.ConfirmRetention,
		},
	)
	c.ShowingService = service.NewShowingService(c.ShowingStore)

	// Initialize workers
	reaperCfg := worker.DefaultReaperConfig()
	if cfg.ReaperInterval > 0 {
		reaperCfg.ScanInterval = cfg.ReaperInterval
	}
	if cfg.ReaperBatchSize > 0 {
		reaperCfg.BatchSize = cfg.ReaperBatchSize
	}
	c.Reaper = worker.NewReaper(c.ShowingStore, c.HoldStore, c.EventPublisher, reaperCfg)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.BookingHandler = handler.NewBookingHandler(c.HoldService, c.ConfirmService, c.ShowingService)
	c.AdminHandler = handler.NewAdminHandler(c.ShowingService)

	return c
}
