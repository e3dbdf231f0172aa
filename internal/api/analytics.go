package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/preventia/preventia-core/internal/analytics"
	"github.com/preventia/preventia-core/internal/domain"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	windowDays := intParam(r, "window_days", 30)
	summary, err := s.analytics.DashboardSummary(r.Context(), windowDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, summary, nil)
}

func (s *Server) handleSentimentTimeline(w http.ResponseWriter, r *http.Request) {
	weeks := intParam(r, "weeks", 12)
	granularity := analytics.Granularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = analytics.GranularityWeek
	}
	series, err := s.analytics.SentimentTimeline(r.Context(), weeks, granularity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, series, nil)
}

func (s *Server) handleTopicDistribution(w http.ResponseWriter, r *http.Request) {
	from, to := dateRangeParams(r)
	minConfidence := floatParam(r, "min_confidence", 0)
	stats, err := s.analytics.TopicDistribution(r.Context(), from, to, minConfidence)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, stats, nil)
}

func (s *Server) handleGeographicDistribution(w http.ResponseWriter, r *http.Request) {
	from, to := dateRangeParams(r)
	var topic *domain.Topic
	if t := r.URL.Query().Get("topic"); t != "" {
		parsed := domain.Topic(t)
		topic = &parsed
	}
	stats, err := s.analytics.GeographicDistribution(r.Context(), from, to, topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, stats, nil)
}

func intParam(r *http.Request, name string, def int) int {
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

func floatParam(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// dateRangeParams reads date_from/date_to (RFC3339), defaulting to the
// trailing 90 days when absent.
func dateRangeParams(r *http.Request) (time.Time, time.Time) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -90)
	if v := r.URL.Query().Get("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	return from, to
}
