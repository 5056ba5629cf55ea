package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quorum/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the consensus session over HTTP",
	Long:  "Opens one session over the configured roster and exposes it as a JSON API: POST /api/questions runs a round, GET /api/leaderboard returns the live standings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSessionEnv(ctx)
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
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("session_id", env.Session.ID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *sessionEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session_id": env.Session.ID})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/questions", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Question string `json:"question"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.Question == "" {
				writeError(w, http.StatusBadRequest, "question is required")
				return
			}

			summary, err := env.Session.SubmitQuestion(req.Context(), body.Question)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, summary)
			case eris.Is(err, session.ErrRoundInFlight):
				writeError(w, http.StatusConflict, "a round is already in flight")
			case eris.Is(err, session.ErrSessionClosed):
				writeError(w, http.StatusGone, "session is closed")
			default:
				zap.L().Error("round failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "round failed")
			}
		})

		r.Get("/leaderboard", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Session.Leaderboard())
		})

		r.Get("/backends/{id}/history", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Session.History(chi.URLParam(req, "id")))
		})

		r.Get("/rounds", func(w http.ResponseWriter, req *http.Request) {
			if env.Store == nil {
				writeError(w, http.StatusNotImplemented, "no store configured")
				return
			}
			recs, err := env.Store.ListRounds(req.Context(), env.Session.ID, 50)
			if err != nil {
				zap.L().Error("list rounds failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list rounds failed")
				return
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/rounds/{questionID}", func(w http.ResponseWriter, req *http.Request) {
			if env.Store == nil {
				writeError(w, http.StatusNotImplemented, "no store configured")
				return
			}
			rec, err := env.Store.GetRound(req.Context(), chi.URLParam(req, "questionID"))
			if err != nil {
				zap.L().Error("get round failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get round failed")
				return
			}
			if rec == nil {
				writeError(w, http.StatusNotFound, "round not found")
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
