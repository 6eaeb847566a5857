// Package api serves the read-only mirror status endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mirrorhooks/pkg/storage"
)

// MirrorsHandler lists recorded mirrors by filter.
//
//	GET {api}/mirrors?domain=&owner=&name=&status=
//
// With domain, owner, name and wiki all set it returns the single record.
type MirrorsHandler struct {
	Store  storage.MirrorStore
	Logger *zap.SugaredLogger
}

func (h *MirrorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	query := r.URL.Query()
	filter := storage.MirrorFilter{
		Domain: strings.TrimSpace(query.Get("domain")),
		Owner:  strings.TrimSpace(query.Get("owner")),
		Name:   strings.TrimSpace(query.Get("name")),
		Status: strings.TrimSpace(query.Get("status")),
	}

	if raw := strings.TrimSpace(query.Get("wiki")); raw != "" {
		wiki, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "wiki must be a boolean", http.StatusBadRequest)
			return
		}
		if filter.Domain == "" || filter.Owner == "" || filter.Name == "" {
			http.Error(w, "wiki requires domain, owner and name", http.StatusBadRequest)
			return
		}
		record, err := h.Store.GetMirror(r.Context(), filter.Domain, filter.Owner, filter.Name, wiki)
		if err != nil {
			h.fail(w, "get mirror failed", err)
			return
		}
		if record == nil {
			http.Error(w, "mirror not found", http.StatusNotFound)
			return
		}
		writeJSON(w, record)
		return
	}

	records, err := h.Store.ListMirrors(r.Context(), filter)
	if err != nil {
		h.fail(w, "list mirrors failed", err)
		return
	}
	if records == nil {
		records = []storage.MirrorRecord{}
	}
	writeJSON(w, records)
}

func (h *MirrorsHandler) fail(w http.ResponseWriter, message string, err error) {
	http.Error(w, message, http.StatusInternalServerError)
	if h.Logger != nil {
		h.Logger.Errorw(message, "error", err)
	}
}

// HealthHandler always answers 200 "ok".
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
