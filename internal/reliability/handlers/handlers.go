// Package handlers exposes backups over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/reliability"
	"github.com/rs/zerolog"
)

// Backuper runs a backup
type Backuper interface {
	Backup(ctx context.Context) (events.BackupCompletedData, error)
}

// RemoteLister lists archives held by the object store
type RemoteLister interface {
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// Handler handles backup HTTP requests
type Handler struct {
	backups Backuper
	remote  RemoteLister
	log     zerolog.Logger
}

// NewHandler creates a new backup handler. remote may be nil when no
// object store is configured.
func NewHandler(backups Backuper, remote RemoteLister, log zerolog.Logger) *Handler {
	return &Handler{
		backups: backups,
		remote:  remote,
		log:     log.With().Str("handler", "backups").Logger(),
	}
}

// HandleBackup handles POST /api/maintenance/backup
func (h *Handler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	res, err := h.backups.Backup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleListRemote handles GET /api/maintenance/backups
func (h *Handler) HandleListRemote(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		h.writeError(w, http.StatusNotFound, "remote backups are not configured")
		return
	}

	backups, err := h.remote.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list remote backups")
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if backups == nil {
		backups = []reliability.BackupInfo{}
	}
	h.writeJSON(w, http.StatusOK, backups)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
