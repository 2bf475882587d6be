package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/tabular"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/dashboard"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
)

type dashboardResponse struct {
	domain.Aggregation
	ReadOnly bool `json:"readOnly"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboardResponse{
		Aggregation: s.dashboard.Aggregate(),
		ReadOnly:    s.opts.ReadOnly,
	})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.View(q))
}

// parseQuery reads q, affected, feeder, page and pageSize. pageSize accepts
// a number or "all".
func parseQuery(r *http.Request) (domain.Query, error) {
	v := r.URL.Query()
	q := domain.Query{
		Needle:   v.Get("q"),
		Feeder:   v.Get("feeder"),
		Page:     1,
		PageSize: domain.DefaultPageSize,
	}

	if raw := v.Get("affected"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Query{}, fmt.Errorf("invalid affected %q", raw)
		}
		q.AffectedOnly = on
	}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Query{}, fmt.Errorf("invalid page %q", raw)
		}
		q.Page = n
	}
	if raw := v.Get("pageSize"); raw != "" {
		if strings.EqualFold(raw, "all") {
			q.PageSize = domain.PageSizeAll
		} else {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return domain.Query{}, fmt.Errorf("invalid pageSize %q", raw)
			}
			q.PageSize = n
		}
	}
	return q, nil
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := tabular.FormatFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	summary, err := s.dashboard.Load(body, format)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.logger.Warn("import rejected", "format", format, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="stations.csv"`)
	if err := s.dashboard.Export(w); err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

func (s *Server) handleToggleFeeder(w http.ResponseWriter, r *http.Request) {
	feeder := r.PathValue("feeder")
	off := s.dashboard.ToggleFeeder(feeder)
	writeJSON(w, http.StatusOK, map[string]any{"feeder": feeder, "off": off})
}

func (s *Server) handleToggleStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out, err := s.dashboard.ToggleStation(id)
	if errors.Is(err, dashboard.ErrUnknownStation) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isOut": out})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard.Publish(r.Context())
	if err != nil {
		writeError(w, remoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard.Remote(r.Context())
	if err != nil {
		writeError(w, remoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func remoteStatus(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrNoSnapshotStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrMalformedSnapshot):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleSnapshotRead(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Fetch(r.Context())
	if err != nil {
		s.logger.Error("snapshot read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshotPublish(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	in, err := domain.ParseSnapshotInput(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.snapshots.Publish(r.Context(), in)
	if errors.Is(err, domain.ErrMalformedSnapshot) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("snapshot publish failed", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
