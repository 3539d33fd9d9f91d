package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/probe"
	"github.com/hamed0406/statusboard/internal/repo"
)

type addPayload struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	IntervalSeconds int    `json:"interval_seconds"`
}

type checkResponse struct {
	Monitor *domain.Monitor    `json:"monitor,omitempty"`
	Result  domain.BatchResult `json:"result"`
	DNS     *probe.DNSStatus   `json:"dns,omitempty"`
}

func (s *Server) handleAddMonitor(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	raw := strings.TrimSpace(p.URL)
	if !isValidHTTPURL(raw) {
		writeError(w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}
	if p.IntervalSeconds < 0 {
		writeError(w, http.StatusBadRequest, "interval_seconds must be positive")
		return
	}
	if p.IntervalSeconds == 0 {
		p.IntervalSeconds = domain.DefaultIntervalSeconds
	}

	m := &domain.Monitor{
		Name:            strings.TrimSpace(p.Name),
		URL:             normalizeHTTPURL(raw),
		IntervalSeconds: p.IntervalSeconds,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Monitors.Add(r.Context(), m); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			writeError(w, http.StatusConflict, "monitor already exists")
			return
		}
		s.Logger.Error("add_monitor_failed", zap.String("url", m.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	// immediate feedback for the new monitor
	resp := s.checkWithDiagnosis(r.Context(), *m)
	resp.Monitor = m
	if err := s.refresh(r.Context(), m); err != nil {
		s.Logger.Warn("monitor_reload_failed", zap.String("monitor_id", string(m.ID)), zap.Error(err))
	}

	s.Logger.Info("added_monitor",
		zap.String("monitor_id", string(m.ID)),
		zap.String("url", m.URL),
		zap.String("status", domain.DisplayStatus(resp.Result.Outcome)),
	)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Monitors.List(r.Context())
	if err != nil {
		s.Logger.Error("list_monitors_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

type statusResponse struct {
	MonitorID domain.MonitorID    `json:"monitor_id"`
	URL       string              `json:"url"`
	Status    string              `json:"status"`
	LastCheck *domain.CheckRecord `json:"last_check"`
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rec, err := s.Checks.LatestCheck(r.Context(), m.ID)
	if err != nil {
		s.Logger.Error("latest_check_failed", zap.String("monitor_id", string(m.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status error")
		return
	}
	var outcome *domain.CheckOutcome
	if rec != nil {
		outcome = &rec.CheckOutcome
	}
	writeJSON(w, http.StatusOK, statusResponse{
		MonitorID: m.ID,
		URL:       m.URL,
		Status:    domain.DisplayStatus(outcome),
		LastCheck: rec,
	})
}

func (s *Server) handleCheckMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := s.checkWithDiagnosis(r.Context(), *m)
	code := http.StatusOK
	if !resp.Result.Succeeded {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

type batchResponse struct {
	Message string `json:"message,omitempty"`
	domain.BatchSummary
}

func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Monitors.List(r.Context())
	if err != nil {
		s.Logger.Error("list_monitors_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if len(ms) == 0 {
		writeJSON(w, http.StatusOK, batchResponse{Message: "no monitors to check", BatchSummary: domain.Summarize(nil)})
		return
	}
	// a client hanging up must not abandon half a batch
	sum := s.Checker.CheckAll(context.WithoutCancel(r.Context()), ms)
	writeJSON(w, http.StatusOK, batchResponse{BatchSummary: sum})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Checks.Latest(r.Context())
	if err != nil {
		s.Logger.Error("latest_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if rows == nil {
		rows = []repo.LatestRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*domain.Monitor, bool) {
	id := domain.MonitorID(chi.URLParam(r, "id"))
	m, err := s.Monitors.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return nil, false
		}
		s.Logger.Error("get_monitor_failed", zap.String("monitor_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return nil, false
	}
	return m, true
}

// checkWithDiagnosis runs one check and, when the target is DOWN, explains
// the host's DNS state alongside it.
func (s *Server) checkWithDiagnosis(ctx context.Context, m domain.Monitor) checkResponse {
	res := s.Checker.CheckOne(ctx, m)
	resp := checkResponse{Result: res}
	if res.Outcome == nil || res.Outcome.Status != domain.StatusDown {
		return resp
	}
	dns := probe.CheckDNS(ctx, s.Resolver, probe.HostOf(m.URL))
	s.Logger.Info("dns_check",
		zap.String("monitor_id", string(m.ID)),
		zap.String("domain", dns.Domain),
		zap.String("class", string(dns.Class)),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
	resp.DNS = &dns
	return resp
}

// refresh reloads m so the response carries the stamped last-checked time.
func (s *Server) refresh(ctx context.Context, m *domain.Monitor) error {
	fresh, err := s.Monitors.Get(ctx, m.ID)
	if err != nil {
		return err
	}
	*m = *fresh
	return nil
}
