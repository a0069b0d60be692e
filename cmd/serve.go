package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nosite-cli/internal/pipeline"
	anthropicpkg "github.com/sells-group/nosite-cli/pkg/anthropic"
	"github.com/sells-group/nosite-cli/pkg/places"
)

var servePort int

const shutdownTimeout = 10 * time.Second

// buildMux wires the webhook routes. A nil pipeline accepts requests but
// skips the discovery run, which keeps the handlers testable in isolation.
func buildMux(ctx context.Context, p *pipeline.Pipeline) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/discover", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Location     string `json:"location"`
			BusinessType string `json:"business_type"`
			MaxResults   int    `json:"max_results"`
			BatchSize    int    `json:"batch_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if req.Location == "" {
			http.Error(w, `{"error":"location is required"}`, http.StatusBadRequest)
			return
		}

		// Run discovery asynchronously
		go func() {
			if p == nil {
				return
			}
			summary, err := p.Run(ctx, pipeline.Request{
				Location:     req.Location,
				BusinessType: req.BusinessType,
				MaxResults:   req.MaxResults,
				BatchSize:    req.BatchSize,
			})
			if err != nil {
				zap.L().Error("webhook discovery failed",
					zap.String("location", req.Location),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook discovery complete",
				zap.String("location", req.Location),
				zap.String("run_id", summary.RunID),
				zap.Int("without_website", summary.WithoutWebsite),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "accepted",
			"location": req.Location,
		})
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for discovery requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		placesClient := places.NewClient(cfg.Places.Key,
			places.WithRateLimit(cfg.Places.RateLimitRPS),
			places.WithPageDelay(time.Duration(cfg.Places.PageDelaySecs)*time.Second),
		)
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		p := pipeline.New(cfg, placesClient, anthropicClient, pipeline.NewZapSink())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(ctx, p),
		}

		// Graceful shutdown: the signal context is already cancelled here, so
		// in-flight requests get a fresh timeout context to drain under.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
