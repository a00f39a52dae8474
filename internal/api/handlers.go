package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aleister1102/siteguardian/internal/differ"
	"github.com/aleister1102/siteguardian/internal/models"
	"github.com/aleister1102/siteguardian/internal/scheduler"
	"github.com/aleister1102/siteguardian/internal/urlhandler"

	"github.com/go-chi/chi/v5"
)

// minOperatorInterval is the shortest interval accepted from operators.
const minOperatorInterval = time.Minute

// siteRequest is the body of POST and PATCH on /sites. Absent fields keep
// their current value, or the default on create.
type siteRequest struct {
	URL            *string              `json:"url" validate:"omitempty,url"`
	Name           *string              `json:"name" validate:"omitempty,max=200"`
	Schedule       *models.Schedule     `json:"schedule"`
	Enabled        *bool                `json:"enabled"`
	FetchOptions   *models.FetchOptions `json:"fetch_options"`
	RetentionLimit *int                 `json:"retention_limit" validate:"omitempty,min=0"`
	CompressOld    *bool                `json:"compress_old"`
	Notify         *bool                `json:"notify"`
}

func (req siteRequest) apply(site *models.MonitoredSite) {
	if req.URL != nil {
		site.URL = *req.URL
	}
	if req.Name != nil {
		site.Name = *req.Name
	}
	if req.Schedule != nil {
		site.Schedule = req.Schedule.WithDefaults()
	}
	if req.Enabled != nil {
		site.Enabled = *req.Enabled
	}
	if req.FetchOptions != nil {
		site.FetchOptions = *req.FetchOptions
	}
	if req.RetentionLimit != nil {
		site.RetentionLimit = *req.RetentionLimit
	}
	if req.CompressOld != nil {
		site.CompressOld = *req.CompressOld
	}
	if req.Notify != nil {
		site.Notify = *req.Notify
	}
}

func (s *Server) decodeSiteRequest(w http.ResponseWriter, r *http.Request) (siteRequest, bool) {
	var req siteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if req.URL != nil {
		normalized, err := urlhandler.NormalizeURL(*req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return req, false
		}
		req.URL = &normalized
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func validateOperatorSite(site models.MonitoredSite) error {
	if err := site.Validate(); err != nil {
		return err
	}
	if site.Schedule.Kind == models.ScheduleInterval && site.Schedule.Interval.Std() < minOperatorInterval {
		return fmt.Errorf("interval must be at least %s", minOperatorInterval)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSiteRequest(w, r)
	if !ok {
		return
	}
	if req.URL == nil {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	site := models.NewMonitoredSite(*req.URL, models.IntervalSchedule(models.DefaultScheduleInterval))
	req.apply(&site)
	if err := validateOperatorSite(site); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateSite(r.Context(), &site); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("site_id", site.ID).Str("url", site.URL).Msg("Site created")
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.store.GetSite(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) updateSite(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSiteRequest(w, r)
	if !ok {
		return
	}
	site, err := s.store.GetSite(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	previous := site.Schedule
	req.apply(site)
	if err := validateOperatorSite(*site); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpdateSite(r.Context(), site); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if site.Schedule != previous {
		if err := s.crawls.Reschedule(r.Context(), site.ID); err != nil {
			s.logger.Error().Err(err).Str("site_id", site.ID).Msg("Failed to reschedule site")
			s.writeStoreError(w, err)
			return
		}
		if updated, err := s.store.GetSite(r.Context(), site.ID); err == nil {
			site = updated
		}
	}
	s.logger.Info().Str("site_id", site.ID).Bool("enabled", site.Enabled).Msg("Site updated")
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	if err := s.store.DeleteSite(r.Context(), siteID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("site_id", siteID).Msg("Site deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	job, err := s.crawls.TriggerManualCrawl(r.Context(), chi.URLParam(r, "siteID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, job)
	case errors.Is(err, models.ErrCrawlInProgress), errors.Is(err, models.ErrSiteDisabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeStoreError(w, err)
	}
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	history, err := s.crawls.GetHistory(r.Context(), chi.URLParam(r, "siteID"), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	data, err := s.backups.Get(hash)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Hash", hash)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) diffReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := chi.URLParam(r, "siteID")

	diff, err := s.store.GetDiff(ctx, chi.URLParam(r, "diffID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if diff.SiteID != siteID {
		writeError(w, http.StatusNotFound, "diff not found")
		return
	}
	if diff.PreviousSnapshotID == "" {
		writeError(w, http.StatusNotFound, "baseline capture has no previous version")
		return
	}

	snaps, err := s.store.ListSnapshots(ctx, siteID, 0)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	hashes := make(map[string]string, len(snaps))
	for _, snap := range snaps {
		hashes[snap.ID] = snap.ContentHash
	}
	prevHash, okPrev := hashes[diff.PreviousSnapshotID]
	newHash, okNew := hashes[diff.NewSnapshotID]
	if !okPrev || !okNew {
		writeError(w, http.StatusNotFound, "snapshots of this diff were removed by retention")
		return
	}

	previous, err := s.backups.Get(prevHash)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	current, err := s.backups.Get(newHash)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	site, err := s.store.GetSite(ctx, siteID)
	title := siteID
	if err == nil {
		title = site.DisplayName()
	}
	report, err := differ.RenderHTMLReport(previous, current, title)
	if err != nil {
		var diffErr *models.DiffError
		if errors.As(err, &diffErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

// writeStoreError maps lookup and storage failures onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
