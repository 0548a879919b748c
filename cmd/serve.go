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

	"github.com/sells-group/buyermatch/internal/model"
)

var servePort int

type ranker interface {
	RankBuyers(ctx context.Context, subject model.SubjectProperty) ([]model.RankedBuyer, error)
}

type rosterControl interface {
	Replace(buyers []model.Buyer)
	Info() (size int, loadedAt time.Time, fresh bool)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the buyer ranking HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeMux(env.Engine, env.Roster),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newServeMux(engine ranker, rosterCache rosterControl) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /rank", func(w http.ResponseWriter, r *http.Request) {
		var subject model.SubjectProperty
		if err := json.NewDecoder(r.Body).Decode(&subject); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		ranked, err := engine.RankBuyers(r.Context(), subject)
		if err != nil {
			zap.L().Error("rank request failed", zap.Error(err))
			http.Error(w, `{"error":"ranking failed, retry later"}`, http.StatusBadGateway)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count":  len(ranked),
			"buyers": ranked,
		})
	})

	mux.HandleFunc("POST /roster/prime", func(w http.ResponseWriter, r *http.Request) {
		var buyers []model.Buyer
		if err := json.NewDecoder(r.Body).Decode(&buyers); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		rosterCache.Replace(buyers)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "primed",
			"buyers": len(buyers),
		})
	})

	mux.HandleFunc("GET /roster/status", func(w http.ResponseWriter, r *http.Request) {
		size, loadedAt, fresh := rosterCache.Info()
		writeJSON(w, http.StatusOK, map[string]any{
			"buyers":    size,
			"loaded_at": loadedAt,
			"fresh":     fresh,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
