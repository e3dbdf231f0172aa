// Package analytics implements the read-only Analytics Query Layer (C8):
// dashboard summaries, sentiment/topic timelines, geographic distribution
// and full-text article search. Every query here ignores Articles whose
// processing_status isn't completed (spec.md §4.8) — NLP-incomplete rows
// carry no sentiment/topic fields to aggregate over.
package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/preventia/preventia-core/internal/domain"
)

// DB is the narrow read path analytics needs from C7, matching the plain
// parameterized-SQL style the teacher's compliance storage package uses
// (internal/storage/postgres.Database.Query/QueryRow satisfy this).
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Granularity is the sentiment_timeline/topic_timeline bucket width.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func (g Granularity) truncUnit() string {
	switch g {
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	default:
		return "day"
	}
}

// DashboardSummary is dashboard_summary's return shape (spec.md §4.8).
type DashboardSummary struct {
	TotalArticles         int
	RecentArticles         int
	SentimentDistribution map[domain.SentimentLabel]int
	TopicDistribution      map[domain.Topic]int
	ActiveSources          int
	AvgSentimentScore      float64
	AnalysisPeriodDays     int
}

// SentimentBucket is one point of sentiment_timeline's series.
type SentimentBucket struct {
	BucketStart  time.Time
	Positive     int
	Negative     int
	Neutral      int
	Total        int
	AvgSentiment float64
}

// GeoStat is one per-country row of geographic_distribution.
type GeoStat struct {
	Country      string
	Count        int
	AvgSentiment float64
}

// TopicStat is one row of topic_distribution.
type TopicStat struct {
	Topic         domain.Topic
	Count         int
	AvgConfidence float64
}

// TopicBucket is one point of topic_timeline's series.
type TopicBucket struct {
	BucketStart time.Time
	Topic       domain.Topic
	Count       int
}

// Service answers every C8 query over a completed-only view of articles.
type Service struct {
	db    DB
	index *SearchIndex
}

// New builds a Service. index may be nil; ArticlesSearch then falls back
// to a plain SQL ILIKE scan instead of the bleve free-text index.
func New(db DB, index *SearchIndex) *Service {
	return &Service{db: db, index: index}
}

const completedOnly = `processing_status = 'completed'`

// DashboardSummary implements spec.md §4.8's dashboard_summary.
func (s *Service) DashboardSummary(ctx context.Context, windowDays int) (*DashboardSummary, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	out := &DashboardSummary{
		SentimentDistribution: map[domain.SentimentLabel]int{},
		TopicDistribution:     map[domain.Topic]int{},
		AnalysisPeriodDays:    windowDays,
	}

	row := s.db.QueryRow(ctx, `SELECT count(*) FROM articles WHERE `+completedOnly)
	if err := row.Scan(&out.TotalArticles); err != nil {
		return nil, err
	}

	row = s.db.QueryRow(ctx, `
		SELECT count(*), coalesce(avg(sentiment_score), 0)
		FROM articles
		WHERE `+completedOnly+` AND published_at >= now() - ($1 || ' days')::interval`,
		windowDays)
	if err := row.Scan(&out.RecentArticles, &out.AvgSentimentScore); err != nil {
		return nil, err
	}

	row = s.db.QueryRow(ctx, `SELECT count(*) FROM sources WHERE status = 'active'`)
	if err := row.Scan(&out.ActiveSources); err != nil {
		return nil, err
	}

	sentRows, err := s.db.Query(ctx, `
		SELECT sentiment_label, count(*) FROM articles
		WHERE `+completedOnly+` GROUP BY sentiment_label`)
	if err != nil {
		return nil, err
	}
	defer sentRows.Close()
	for sentRows.Next() {
		var label string
		var n int
		if err := sentRows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out.SentimentDistribution[domain.SentimentLabel(label)] = n
	}
	if err := sentRows.Err(); err != nil {
		return nil, err
	}

	topicRows, err := s.db.Query(ctx, `
		SELECT topic_category, count(*) FROM articles
		WHERE `+completedOnly+` GROUP BY topic_category`)
	if err != nil {
		return nil, err
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var topic string
		var n int
		if err := topicRows.Scan(&topic, &n); err != nil {
			return nil, err
		}
		out.TopicDistribution[domain.Topic(topic)] = n
	}
	return out, topicRows.Err()
}

// SentimentTimeline implements spec.md §4.8's sentiment_timeline.
func (s *Service) SentimentTimeline(ctx context.Context, weeks int, granularity Granularity) ([]SentimentBucket, error) {
	if weeks <= 0 {
		weeks = 12
	}
	rows, err := s.db.Query(ctx, `
		SELECT
			date_trunc($1, published_at) AS bucket,
			count(*) FILTER (WHERE sentiment_label = 'positive'),
			count(*) FILTER (WHERE sentiment_label = 'negative'),
			count(*) FILTER (WHERE sentiment_label = 'neutral'),
			count(*),
			coalesce(avg(sentiment_score), 0)
		FROM articles
		WHERE `+completedOnly+` AND published_at >= now() - ($2 || ' weeks')::interval
		GROUP BY bucket
		ORDER BY bucket ASC`,
		granularity.truncUnit(), weeks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []SentimentBucket
	for rows.Next() {
		var b SentimentBucket
		if err := rows.Scan(&b.BucketStart, &b.Positive, &b.Negative, &b.Neutral, &b.Total, &b.AvgSentiment); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// GeographicDistribution implements spec.md §4.8's geographic_distribution,
// joining through sources since Article itself carries no country field.
func (s *Service) GeographicDistribution(ctx context.Context, from, to time.Time, topic *domain.Topic) ([]GeoStat, error) {
	query := `
		SELECT s.country, count(*), coalesce(avg(a.sentiment_score), 0)
		FROM articles a
		JOIN sources s ON s.source_id = a.source_id
		WHERE a.` + completedOnly + `
		  AND a.published_at BETWEEN $1 AND $2`
	args := []interface{}{from, to}
	if topic != nil {
		query += ` AND a.topic_category = $3`
		args = append(args, string(*topic))
	}
	query += ` GROUP BY s.country ORDER BY count(*) DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GeoStat
	for rows.Next() {
		var g GeoStat
		if err := rows.Scan(&g.Country, &g.Count, &g.AvgSentiment); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// TopicDistribution implements spec.md §4.8's topic_distribution.
func (s *Service) TopicDistribution(ctx context.Context, from, to time.Time, minConfidence float64) ([]TopicStat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT topic_category, count(*), coalesce(avg(topic_confidence), 0)
		FROM articles
		WHERE `+completedOnly+`
		  AND published_at BETWEEN $1 AND $2
		  AND topic_confidence >= $3
		GROUP BY topic_category
		ORDER BY count(*) DESC`,
		from, to, minConfidence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicStat
	for rows.Next() {
		var t TopicStat
		var topic string
		if err := rows.Scan(&topic, &t.Count, &t.AvgConfidence); err != nil {
			return nil, err
		}
		t.Topic = domain.Topic(topic)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopicTimeline implements spec.md §4.8's topic_timeline.
func (s *Service) TopicTimeline(ctx context.Context, from, to time.Time, granularity Granularity) ([]TopicBucket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT date_trunc($1, published_at) AS bucket, topic_category, count(*)
		FROM articles
		WHERE `+completedOnly+` AND published_at BETWEEN $2 AND $3
		GROUP BY bucket, topic_category
		ORDER BY bucket ASC`,
		granularity.truncUnit(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicBucket
	for rows.Next() {
		var b TopicBucket
		var topic string
		if err := rows.Scan(&b.BucketStart, &topic, &b.Count); err != nil {
			return nil, err
		}
		b.Topic = domain.Topic(topic)
		out = append(out, b)
	}
	return out, rows.Err()
}
