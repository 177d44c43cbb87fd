package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/sandali-perera/library-server/internal/config"
	"github.com/sandali-perera/library-server/internal/http/handlers/auth"
	"github.com/sandali-perera/library-server/internal/http/handlers/books"
	"github.com/sandali-perera/library-server/internal/http/handlers/categories"
	"github.com/sandali-perera/library-server/internal/http/handlers/lendings"
	"github.com/sandali-perera/library-server/internal/http/handlers/readers"
	"github.com/sandali-perera/library-server/internal/http/middleware"
	"github.com/sandali-perera/library-server/internal/storage/mongodb"
	jwtutil "github.com/sandali-perera/library-server/internal/utils/jwt"
)

func main() {
	//load config
	cfg := config.MustLoad()

	//db setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := mongodb.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	slog.Info("connected to database", slog.String("db", cfg.DBName))

	tokens := jwtutil.NewManager(cfg.Auth)

	//setup router
	router := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.Authenticate(tokens, h)
	}

	router.HandleFunc("POST /auth/signup", auth.Signup(store))
	router.HandleFunc("POST /auth/login", auth.Login(store, tokens))
	router.HandleFunc("POST /auth/refresh-token", auth.Refresh(store, tokens))
	router.HandleFunc("POST /auth/logout", auth.Logout())
	router.HandleFunc("GET /auth/users", protected(auth.ListUsers(store)))

	router.HandleFunc("POST /books", protected(books.Create(store)))
	router.HandleFunc("GET /books", protected(books.List(store)))
	router.HandleFunc("GET /books/{id}", protected(books.GetByID(store)))
	router.HandleFunc("PUT /books/{id}", protected(books.Update(store)))
	router.HandleFunc("DELETE /books/{id}", protected(books.Delete(store)))

	router.HandleFunc("POST /categories", protected(categories.Create(store)))
	router.HandleFunc("GET /categories", protected(categories.List(store)))
	router.HandleFunc("GET /categories/{id}", protected(categories.GetByID(store)))
	router.HandleFunc("PUT /categories/{id}", protected(categories.Update(store)))
	router.HandleFunc("DELETE /categories/{id}", protected(categories.Delete(store)))

	router.HandleFunc("POST /readers", protected(readers.Create(store)))
	router.HandleFunc("GET /readers", protected(readers.List(store)))
	router.HandleFunc("GET /readers/{id}", protected(readers.GetByID(store)))
	router.HandleFunc("PUT /readers/{id}", protected(readers.Update(store)))
	router.HandleFunc("DELETE /readers/{id}", protected(readers.Delete(store)))

	router.HandleFunc("POST /lendings", protected(lendings.Lend(store, cfg.LendingDurationDays)))
	router.HandleFunc("PUT /lendings/return/{lendingId}", protected(lendings.Return(store)))
	router.HandleFunc("GET /lendings", protected(lendings.List(store)))
	router.HandleFunc("GET /lendings/overdue", protected(lendings.Overdue(store)))
	router.HandleFunc("GET /lendings/{id}", protected(lendings.GetByID(store)))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(middleware.WithRequestID(middleware.LogRequests(router)))

	//start server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}
	slog.Info("server started", slog.String("Address", cfg.Addr))
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	<-done

	slog.Info("shutting down the server")
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := store.Disconnect(ctx); err != nil {
		slog.Error("Failed to disconnect database", slog.String("error", err.Error()))
	}
	slog.Info("Server Shutdown successfully")
}
