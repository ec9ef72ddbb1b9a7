package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"ptbridge/handlers"
)

// corsMiddleware handles CORS for API routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	searchHandler *handlers.SearchHandler,
	downloadHandler *handlers.DownloadHandler,
	historyHandler *handlers.HistoryHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/search", searchHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/search", searchHandler.Options).Methods(http.MethodOptions)

	api.HandleFunc("/download", downloadHandler.Dispatch).Methods(http.MethodPost)
	api.HandleFunc("/download", downloadHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/download/freespace", downloadHandler.FreeSpace).Methods(http.MethodGet)
	api.HandleFunc("/download/freespace", downloadHandler.Options).Methods(http.MethodOptions)

	if historyHandler != nil {
		api.HandleFunc("/history", historyHandler.List).Methods(http.MethodGet)
		api.HandleFunc("/history", historyHandler.Remove).Methods(http.MethodDelete)
		api.HandleFunc("/history", historyHandler.Options).Methods(http.MethodOptions)
		api.HandleFunc("/history/clear", historyHandler.Clear).Methods(http.MethodPost)
		api.HandleFunc("/history/clear", historyHandler.Options).Methods(http.MethodOptions)
	}

	api.HandleFunc("/settings", settingsHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/settings", settingsHandler.Options).Methods(http.MethodOptions)
}
