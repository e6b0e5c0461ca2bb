// Package main provides the embedded AgriSync client backend for desktop
// platforms. The UI shell communicates via REST/WebSocket on localhost:8090;
// mutations flow through the sync facade so they keep working offline.
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/kbrou/agrisync/cmd/desktop/handlers"
	"github.com/kbrou/agrisync/internal/api"
	"github.com/kbrou/agrisync/internal/connectivity"
	"github.com/kbrou/agrisync/internal/kvstore"
	"github.com/kbrou/agrisync/internal/logging"
	syncpkg "github.com/kbrou/agrisync/internal/sync"
	"github.com/kbrou/agrisync/internal/sync/queue"
)

func main() {
	logging.Init(os.Stdout, logging.LevelInfo)

	dataDir := envOr("DATA_DIR", "./data")
	port := envOr("PORT", "8090")
	apiBaseURL := envOr("API_BASE_URL", "https://api.agrisync.example.com/v1")

	// Local persistence substrate
	kv, err := kvstore.OpenSQLite(dataDir)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer kv.Close()

	// Core wiring: store -> engine -> monitor -> facade
	store := queue.NewStore(kv)
	client := api.NewClient(&api.Config{BaseURL: apiBaseURL})
	engine := syncpkg.NewEngine(store, client)

	// Seed offline; the shell reports the real state on startup via
	// POST /api/connectivity before any save goes through.
	monitor := connectivity.NewMonitor(false, store.PendingCount)
	facade := syncpkg.NewFacade(monitor, store, client, engine)

	hub := NewWSHub()
	engine.SetEventHandler(hub)

	monitor.OnRestore(func() {
		if _, err := engine.SyncAll(context.Background()); err != nil {
			logging.Error("Connectivity-triggered sync failed", err)
		}
	})

	syncHandler := handlers.NewSyncHandler(facade, monitor)
	syncHandler.SetBroadcaster(hub)
	recordsHandler := handlers.NewRecordsHandler(facade)
	recordsHandler.SetBroadcaster(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"agrisync-desktop"}`))
	})

	mux.HandleFunc("/api/sync/status", syncHandler.GetStatus)
	mux.HandleFunc("/api/sync/now", syncHandler.TriggerSync)
	mux.HandleFunc("/api/sync/queue", syncHandler.GetQueue)
	mux.HandleFunc("/api/sync/queue/export", syncHandler.ExportQueue)
	mux.HandleFunc("/api/sync/queue/cleanup", syncHandler.CleanupQueue)
	mux.HandleFunc("/api/sync/queue/", syncHandler.DeleteQueueItem)
	mux.HandleFunc("/api/connectivity", syncHandler.ReportConnectivity)
	mux.Handle("/api/records/", recordsHandler)
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	log.Printf("AgriSync Desktop Server starting on port %s...", port)
	log.Fatal(http.ListenAndServe("localhost:"+port, mux))
}

// envOr reads an environment variable with a default.
func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
