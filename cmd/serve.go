package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/purchase-planner/internal/config"
	"github.com/sells-group/purchase-planner/internal/model"
	"github.com/sells-group/purchase-planner/internal/optimizer"
	"github.com/sells-group/purchase-planner/internal/planner"
	"github.com/sells-group/purchase-planner/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		defaults, err := cfg.Optimizer.Options()
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(planner.New(st), st, newRouterConfig(cfg.Server, defaults)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// optimizeRequest is the body of POST /v1/optimize. Unset options fall back
// to the server configuration.
type optimizeRequest struct {
	ListName        string         `json:"list_name"`
	Demands         []model.Demand `json:"demands"`
	Offers          []model.Offer  `json:"offers"`
	Options         requestOptions `json:"options"`
	DropUnavailable bool           `json:"drop_unavailable"`
	Save            bool           `json:"save"`
}

type requestOptions struct {
	MinimumOrder       *decimal.Decimal `json:"minimum_order"`
	MaxVendors         *int             `json:"max_vendors"`
	EarlyStopTolerance *decimal.Decimal `json:"early_stop_tolerance"`
	Dominance          *bool            `json:"dominance"`
}

func (o requestOptions) apply(opts optimizer.Options) optimizer.Options {
	if o.MinimumOrder != nil {
		opts.MinimumOrder = *o.MinimumOrder
	}
	if o.MaxVendors != nil {
		opts.MaxVendors = *o.MaxVendors
	}
	if o.EarlyStopTolerance != nil {
		opts.EarlyStopTolerance = *o.EarlyStopTolerance
	}
	if o.Dominance != nil {
		opts.DisableDominance = !*o.Dominance
	}
	return opts
}

// routerConfig holds the optimizer defaults and the limits the API enforces
// on every optimize request.
type routerConfig struct {
	defaults        optimizer.Options
	ratePerSecond   float64
	optimizeTimeout time.Duration
	maxVendors      int
	maxBodyBytes    int64
}

func newRouterConfig(sc config.ServerConfig, defaults optimizer.Options) routerConfig {
	return routerConfig{
		defaults:        defaults,
		ratePerSecond:   sc.RatePerSecond,
		optimizeTimeout: sc.OptimizeTimeout,
		maxVendors:      sc.MaxVendorCombinations,
		maxBodyBytes:    sc.MaxBodyBytes,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// buildRouter wires the HTTP API. st may be nil, in which case the plan
// endpoints answer 503.
func buildRouter(svc *planner.Service, st store.Store, rc routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := st.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := rate.NewLimiter(rate.Limit(rc.ratePerSecond), max(1, int(rc.ratePerSecond)))
	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(limiter))

		r.Post("/optimize", func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, rc.maxBodyBytes)
			var req optimizeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
					return
				}
				writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}

			opts := req.Options.apply(rc.defaults)
			if opts.MaxVendors > rc.maxVendors {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("max_vendors %d exceeds the server limit of %d", opts.MaxVendors, rc.maxVendors))
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), rc.optimizeTimeout)
			defer cancel()
			plan, err := svc.Run(ctx, planner.Request{
				ListName:        req.ListName,
				Catalog:         &model.Catalog{Demands: req.Demands, Offers: req.Offers},
				Options:         opts,
				DropUnavailable: req.DropUnavailable,
				Save:            req.Save,
			})
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, plan)
			case plan != nil:
				writeJSON(w, http.StatusUnprocessableEntity, plan)
			case errors.Is(err, optimizer.ErrEmptyCatalog),
				errors.Is(err, optimizer.ErrInvalidOptions),
				errors.Is(err, model.ErrInvalidCatalog):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, context.DeadlineExceeded):
				zap.L().Warn("optimize request timed out",
					zap.String("list", req.ListName),
					zap.Int("max_vendors", opts.MaxVendors),
					zap.Duration("budget", rc.optimizeTimeout),
				)
				writeError(w, http.StatusServiceUnavailable,
					fmt.Sprintf("optimization exceeded the %s time budget", rc.optimizeTimeout))
			default:
				zap.L().Error("optimize request failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "optimization failed")
			}
		})

		r.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "plan storage is disabled")
				return
			}
			q := r.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			offset, _ := strconv.Atoi(q.Get("offset"))
			plans, err := st.ListPlans(r.Context(), store.PlanFilter{
				Status:   model.PlanStatus(q.Get("status")),
				ListName: q.Get("list"),
				Limit:    limit,
				Offset:   max(offset, 0),
			})
			if err != nil {
				zap.L().Error("list plans failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list plans failed")
				return
			}
			if plans == nil {
				plans = []model.Plan{}
			}
			writeJSON(w, http.StatusOK, plans)
		})

		r.Get("/plans/{id}", func(w http.ResponseWriter, r *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "plan storage is disabled")
				return
			}
			plan, err := st.GetPlan(r.Context(), chi.URLParam(r, "id"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "plan not found")
				return
			}
			if err != nil {
				zap.L().Error("get plan failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "get plan failed")
				return
			}
			writeJSON(w, http.StatusOK, plan)
		})

		r.Delete("/plans/{id}", func(w http.ResponseWriter, r *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "plan storage is disabled")
				return
			}
			err := st.DeletePlan(r.Context(), chi.URLParam(r, "id"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "plan not found")
				return
			}
			if err != nil {
				zap.L().Error("delete plan failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "delete plan failed")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

// rateLimit rejects requests beyond the process-wide rate with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
