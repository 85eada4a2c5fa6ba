package api

import (
	"net/http"

	"github.com/nerrad567/brightsync/internal/namecache"
)

// NameListResponse is returned by GET /names.
type NameListResponse struct {
	Names    []namecache.Record `json:"names"`
	Count    int                `json:"count"`
	MaxCount int                `json:"max_count"`
}

func (s *Server) handleListNames(w http.ResponseWriter, _ *http.Request) {
	names := s.ctrl.Names()
	records := names.Snapshot()
	if records == nil {
		records = []namecache.Record{}
	}
	writeJSON(w, http.StatusOK, NameListResponse{
		Names:    records,
		Count:    len(records),
		MaxCount: names.MaxCount(),
	})
}

// handlePersistNames copies current monitor names into the cache and
// saves it.
func (s *Server) handlePersistNames(w http.ResponseWriter, r *http.Request) {
	changed, err := s.ctrl.PersistNames(r.Context())
	if err != nil {
		s.logger.Error("persisting names failed", "error", err)
		writeInternalError(w, "failed to persist names")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"count":   s.ctrl.Names().Len(),
	})
}
