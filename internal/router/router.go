package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/wanderplan/wanderplan/internal/api/itinerary"
	"github.com/wanderplan/wanderplan/internal/api/persona"
	"github.com/wanderplan/wanderplan/internal/api/tripsession"
)

// Config contains dependencies needed for the router setup
type Config struct {
	PersonaHandler   *persona.Handler
	SessionHandler   *tripsession.Handler
	ItineraryHandler *itinerary.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/personas", func(r chi.Router) {
			r.Post("/", cfg.PersonaHandler.CreatePersona)
			r.Get("/{personaID}", cfg.PersonaHandler.GetPersona)
		})
		r.Get("/users/{userID}/persona", cfg.PersonaHandler.GetLatestForUser)
		r.Get("/users/{userID}/itineraries", cfg.ItineraryHandler.ListForUser)
		r.Get("/itineraries/{itineraryID}", cfg.ItineraryHandler.GetItinerary)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.SessionHandler.StartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", cfg.SessionHandler.GetSession)
				r.Post("/persona", cfg.SessionHandler.ConfirmPersona)
				r.Post("/mode", cfg.SessionHandler.ChooseMode)
				r.Post("/destinations/search", cfg.SessionHandler.SearchCandidates)
				r.Post("/destinations/select", cfg.SessionHandler.SelectDestination)
				r.Post("/dates", cfg.SessionHandler.SubmitDates)
				r.Get("/hotels", cfg.SessionHandler.ListHotels)
				r.Post("/hotel", cfg.SessionHandler.ChooseHotel)
				r.Post("/hotel/skip", cfg.SessionHandler.SkipHotel)
				r.Post("/itinerary", cfg.SessionHandler.GenerateItinerary)
				r.Post("/save", cfg.SessionHandler.SaveItinerary)
				r.Post("/reset", cfg.SessionHandler.Reset)
			})
		})
	})

	return r
}
