package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/preventia/preventia-core/internal/analytics"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
)

func (s *Server) handleArticlesSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := analytics.SearchFilters{
		Country:  q.Get("country"),
		Language: q.Get("language"),
		Query:    q.Get("search"),
	}
	if v := q.Get("sentiment"); v != "" {
		lbl := domain.SentimentLabel(v)
		filters.Sentiment = &lbl
	}
	if v := q.Get("topic"); v != "" {
		t := domain.Topic(v)
		filters.Topic = &t
	}
	if v := q.Get("source_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.SourceID = &id
		}
	}
	from, to := dateRangeParams(r)
	if q.Get("date_from") != "" {
		filters.DateFrom = &from
	}
	if q.Get("date_to") != "" {
		filters.DateTo = &to
	}

	page := analytics.Pagination{
		Page:     intParam(r, "page", 1),
		PageSize: intParam(r, "page_size", 20),
	}

	result, err := s.analytics.ArticlesSearch(r.Context(), filters, page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, result.Articles, map[string]interface{}{
		"total": result.Total, "page": result.Page, "page_size": result.PageSize,
	})
}

func (s *Server) handleArticleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	article, err := s.articles.GetArticle(r.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, article, nil)
}
