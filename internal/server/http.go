package server

import (
	"AuctionLedger/internal/ingestion"
	"AuctionLedger/internal/observability"
	"AuctionLedger/internal/persistence"
	"AuctionLedger/internal/projection"
	"AuctionLedger/internal/query"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server hosts the HTTP/JSON API plus a gRPC endpoint for health checks
// and reflection-based tooling.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	IngestService *ingestion.GRPCIngestService
	SnapshotMgr   *persistence.SnapshotManager
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

// NewServer creates the API server with all routes registered.
func NewServer(grpcAddr, httpAddr string, deps *ServerDeps) (*Server, error) {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	s := &Server{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
		log:           observability.NewLogger("server"),
	}

	mux := runtime.NewServeMux()
	if err := registerRoutes(mux, deps); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    httpAddr,
		Handler: httpMux,
	}
	return s, nil
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API server (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func registerRoutes(mux *runtime.ServeMux, deps *ServerDeps) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/auction/status", handleAuctionStatus(deps.QueryService)},
		{"GET", "/v1/auction/cycles/{token}", handleCycleProgress(deps.QueryService)},
		{"GET", "/v1/users/{user_id}/progress", handleUserProgress(deps.QueryService)},
		{"GET", "/v1/stats/daily", handleDailyStats(deps.QueryService)},
		{"GET", "/v1/capacity", handleCapacity(deps.QueryService)},
		{"GET", "/v1/users/{user_id}/settlements", handleSettlementHistory(deps.QueryService)},
		{"POST", "/v1/ingest/deposits", handleInjectDeposit(deps.IngestService)},
		{"POST", "/v1/ingest/registrations", handleInjectRegistration(deps.IngestService)},
		{"POST", "/v1/ingest/entitlements", handleInjectEntitlement(deps.IngestService)},
		{"POST", "/v1/ingest/reverse-swaps", handleInjectReverseSwap(deps.IngestService)},
		{"POST", "/v1/ingest/rollover", handleInjectRollover(deps.IngestService)},
		{"GET", "/v1/admin/integrity", handleVerifyIntegrity(deps.QueryService)},
		{"GET", "/v1/admin/eventlog", handleEventLogInfo(deps.SnapshotMgr, deps.StartTime)},
		{"POST", "/v1/admin/projections/rebuild", handleRebuildProjections(deps.DB)},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("%s %s: %w", r.method, r.pattern, err)
		}
	}
	return nil
}

// --- Query handlers ---

func handleAuctionStatus(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		resp, err := qs.GetAuctionStatus(r.Context(), time.Now().UnixMicro())
		if err == query.ErrScheduleNotSet {
			writeError(w, http.StatusNotFound, "schedule not set")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCycleProgress(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		token := pathParams["token"]
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "user_id query parameter must be a valid UUID")
			return
		}
		cycles, err := qs.GetCycleProgress(r.Context(), userID, token)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"cycles": cycles})
	}
}

func handleUserProgress(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		userID, err := uuid.Parse(pathParams["user_id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		resp, err := qs.GetUserProgress(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDailyStats(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		limit := queryInt(r, "limit", 30)
		if limit <= 0 || limit > 365 {
			limit = 30
		}
		var beforeDay *int64
		if v := r.URL.Query().Get("before_day"); v != "" {
			d, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "before_day must be an integer")
				return
			}
			beforeDay = &d
		}
		stats, err := qs.GetDailyStats(r.Context(), limit, beforeDay)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"days": stats})
	}
}

func handleCapacity(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		resp, err := qs.GetCapacity(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSettlementHistory(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		userID, err := uuid.Parse(pathParams["user_id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		limit := queryInt(r, "limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		var token *string
		if v := r.URL.Query().Get("token"); v != "" {
			token = &v
		}
		var afterSeq *int64
		if v := r.URL.Query().Get("after_sequence"); v != "" {
			seq, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "after_sequence must be an integer")
				return
			}
			afterSeq = &seq
		}
		history, err := qs.GetSettlementHistory(r.Context(), userID, token, limit, afterSeq)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": history})
	}
}

// --- Ingest handlers ---
//
// Manual injection for operators. High-volume traffic arrives over NATS;
// these endpoints share the same event channel and therefore the same
// ordering and idempotency guarantees.

func handleInjectDeposit(svc *ingestion.GRPCIngestService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.InjectVaultDeposit(r.Context(), req.Amount); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

func handleInjectRegistration(svc *ingestion.GRPCIngestService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			UserID uuid.UUID `json:"user_id"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := svc.InjectRegistration(r.Context(), req.UserID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

func handleInjectEntitlement(svc *ingestion.GRPCIngestService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			UserID uuid.UUID `json:"user_id"`
			Units  int64     `json:"units"`
			Origin string    `json:"origin"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := svc.InjectEntitlementMint(r.Context(), req.UserID, req.Units, req.Origin); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

func handleInjectReverseSwap(svc *ingestion.GRPCIngestService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			UserID   uuid.UUID `json:"user_id"`
			Token    string    `json:"token"`
			TokenIn  int64     `json:"token_in"`
			Sequence int64     `json:"sequence"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == uuid.Nil || req.Token == "" {
			writeError(w, http.StatusBadRequest, "user_id and token are required")
			return
		}
		if req.Sequence == 0 {
			req.Sequence = time.Now().UnixMicro()
		}
		if err := svc.InjectReverseSwap(r.Context(), req.UserID, req.Token, req.TokenIn, req.Sequence); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

func handleInjectRollover(svc *ingestion.GRPCIngestService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			TickSequence int64 `json:"tick_sequence"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.TickSequence == 0 {
			req.TickSequence = time.Now().UnixMicro()
		}
		if err := svc.InjectRolloverTick(r.Context(), req.TickSequence); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
	}
}

// --- Admin handlers ---

func handleVerifyIntegrity(qs *query.QueryService) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		report, err := qs.VerifyIntegrity(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleEventLogInfo(snapMgr *persistence.SnapshotManager, startTime time.Time) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		latestSeq, err := snapMgr.GetLatestSequence(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"last_sequence":  latestSeq,
			"uptime_seconds": int64(time.Since(startTime).Seconds()),
		})
	}
}

func handleRebuildProjections(db *sql.DB) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if err := projection.RebuildProjections(r.Context(), db); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
