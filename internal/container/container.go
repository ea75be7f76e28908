package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/wanderplan/wanderplan/app/db"
	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/api/destination"
	generativeAI "github.com/wanderplan/wanderplan/internal/api/generative_ai"
	"github.com/wanderplan/wanderplan/internal/api/hotel"
	"github.com/wanderplan/wanderplan/internal/api/itinerary"
	"github.com/wanderplan/wanderplan/internal/api/persona"
	"github.com/wanderplan/wanderplan/internal/api/retrieval"
	"github.com/wanderplan/wanderplan/internal/api/tripsession"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	PersonaHandler   *persona.Handler
	SessionHandler   *tripsession.Handler
	ItineraryHandler *itinerary.Handler
	RetrievalService retrieval.Service
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.LLM.Model)
	if err != nil {
		logger.Error("Failed to initialize generation client", slog.Any("error", err))
		pool.Close()
		return nil, err
	}
	embeddingService, err := generativeAI.NewEmbeddingService(ctx, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDimensions)
	if err != nil {
		logger.Error("Failed to initialize embedding client", slog.Any("error", err))
		pool.Close()
		return nil, err
	}

	personaRepo := persona.NewPostgresPersonaRepo(pool, logger)
	personaService := persona.NewServiceImpl(personaRepo, logger)
	personaHandler := persona.NewHandler(personaService, logger)

	destinationRepo := destination.NewPostgresDestinationRepo(pool, logger)
	hotelRepo := hotel.NewPostgresHotelRepo(pool, logger)
	retrievalService := retrieval.NewServiceImpl(
		destinationRepo, hotelRepo, personaRepo, embeddingService,
		cfg.Retrieval.MatchWeight, cfg.Retrieval.PopularityWeight, logger)

	itineraryRepo := itinerary.NewPostgresItineraryRepo(pool, logger)
	itineraryService := itinerary.NewServiceImpl(aiClient, destinationRepo, hotelRepo, itineraryRepo, logger)
	itineraryHandler := itinerary.NewHandler(itineraryService, logger)

	sessionStore := tripsession.NewStore(cfg.Session.TTL)
	sessionService := tripsession.NewServiceImpl(
		sessionStore, personaService, retrievalService, itineraryService,
		cfg.Retrieval.DefaultCandidateLimit, logger)
	sessionHandler := tripsession.NewHandler(sessionService, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		PersonaHandler:   personaHandler,
		SessionHandler:   sessionHandler,
		ItineraryHandler: itineraryHandler,
		RetrievalService: retrievalService,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Logger.Info("Closing database pool")
		c.Pool.Close()
	}
}
