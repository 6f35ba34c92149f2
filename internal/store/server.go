package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"go-store/internal/store/handlers"
	"go-store/internal/store/middleware"
	"go-store/pkg/logging"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
}

type Server struct {
	logger     *logging.ZapLogger
	httpServer *http.Server
	cfg        Config
}

func NewServer(
	cfg Config,
	tokenAuth *jwtauth.JWTAuth,
	ordersService OrdersService,
	logger *logging.ZapLogger,
) *Server {
	srv := &http.Server{
		Addr: cfg.ServerAddress,
		Handler: createMux(
			tokenAuth,
			ordersService,
			logger,
		),
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: srv,
	}
}

// OrdersService is the engine's public surface as the HTTP layer sees it.
type OrdersService interface {
	handlers.OrderCreationService
	handlers.OrderAdvanceService
	handlers.OrdersAdvanceService
	handlers.OrdersGettingService
	handlers.CallbackService
}

func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server ListenAndServe failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func createMux(
	tokenAuth *jwtauth.JWTAuth,
	ordersService OrdersService,
	logger *logging.ZapLogger,
) *chi.Mux {
	orderCreationHandler := handlers.NewOrderCreationHandler(ordersService, logger)
	orderAdvanceHandler := handlers.NewOrderAdvanceHandler(ordersService, logger)
	ordersAdvanceHandler := handlers.NewOrdersAdvanceHandler(ordersService, logger)
	ordersGettingHandler := handlers.NewOrdersGettingHandler(ordersService, logger)
	callbackHandler := handlers.NewCallbackHandler(ordersService, logger)

	loggerContext := middleware.NewLoggerContext()
	panicRecover := middleware.NewPanicRecover(logger)

	router := chi.NewRouter()
	router.Use(loggerContext.CreateHandler)
	router.Use(panicRecover.CreateHandler)

	router.Route("/api/v1", func(router chi.Router) {
		router.Group(func(router chi.Router) {
			router.Use(jwtauth.Verifier(tokenAuth))
			router.Use(jwtauth.Authenticator(tokenAuth))

			router.Post("/stores/{store}/orders", orderCreationHandler.ServeHTTP)
			router.Get("/stores/{store}/orders", ordersGettingHandler.ServeHTTP)
			router.Post("/orders/{orderID}", orderAdvanceHandler.ServeHTTP)
			router.Post("/orders", ordersAdvanceHandler.ServeHTTP)
		})

		// Providers authenticate their own requests; nothing to verify here.
		router.Post("/callbacks/{gamespace}/{store}/{component}", callbackHandler.ServeHTTP)
	})

	return router
}
