package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/nqdhocai/ovira/internal/snapshot"
)

// NewServer creates an HTTP server with all routes configured. Admin
// endpoints are gated by adminAPIKey when one is set.
func NewServer(port string, vaults VaultService, funder CustodyFunder, snapshots *snapshot.Service, adminAPIKey string) *http.Server {
	handler := NewHandler(vaults, funder)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/vaults/{asset}", handler.GetVault)
	mux.HandleFunc("POST /api/v1/vaults/{asset}/deposit", handler.Deposit)
	mux.HandleFunc("POST /api/v1/vaults/{asset}/withdraw", handler.Withdraw)
	mux.HandleFunc("GET /api/v1/vaults/{asset}/positions/{owner}", handler.GetPosition)
	mux.HandleFunc("GET /api/v1/vaults/{asset}/events", handler.ListEvents)

	admin := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey == "" {
			return h
		}
		return requireAuth(adminAPIKey, h)
	}
	mux.Handle("POST /api/v1/vaults", admin(handler.Initialize))
	mux.Handle("POST /api/v1/vaults/{asset}/accrue", admin(handler.AccrueFees))
	mux.Handle("POST /api/v1/vaults/{asset}/rebalance", admin(handler.Rebalance))
	mux.Handle("POST /api/v1/custody/credit", admin(handler.FundCustody))

	if snapshots != nil {
		reports := NewReportHandler(snapshots)
		mux.HandleFunc("GET /api/v1/vaults/{asset}/snapshots/latest", reports.GetLatestSnapshot)
		mux.HandleFunc("GET /api/v1/vaults/{asset}/snapshots/{date}", reports.GetSnapshotByDate)
		mux.HandleFunc("GET /api/v1/vaults/{asset}/snapshots", reports.ListSnapshots)
		mux.Handle("POST /api/v1/vaults/{asset}/snapshots/generate", admin(reports.GenerateSnapshot))
		mux.HandleFunc("GET /api/v1/vaults/{asset}/indicators", reports.GetIndicators)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
