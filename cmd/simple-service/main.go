// Command simple-service is the demo backend the Lambda reaches through the
// API server proxy: a small echo service meant to run behind a ClusterIP
// Service inside the cluster.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/liavyona/lambda-eks-integration/internal/log"
)

const defaultPort = "8080"

type lambdaEvent struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type greeting struct {
	Message string      `json:"message"`
	Event   lambdaEvent `json:"event"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", healthHandler)
	r.Post("/", helloHandler)
	r.Post("/hello", helloHandler)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, "hello")
}

func helloHandler(w http.ResponseWriter, r *http.Request) {
	var event lambdaEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &errorResponse{Error: "body must be a JSON event with name and age"})
		return
	}

	render.JSON(w, r, &greeting{
		Message: fmt.Sprintf("Hello world from %s", event.Name),
		Event:   event,
	})
}

func main() {
	log.Init(log.Options{})

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
