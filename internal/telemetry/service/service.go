// Package service composes the telemetry repository, range resolver and clock into the queries the
// dashboard needs.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"mqtt-monitor/backend/internal/metrics"
	"mqtt-monitor/backend/internal/telemetry/domain"
	"mqtt-monitor/backend/internal/telemetry/repository"
	"mqtt-monitor/backend/internal/telemetry/timerange"
)

// ErrUnknownField is returned by Series when the field is not a populated numeric column of (host, topic).
var ErrUnknownField = errors.New("unknown field")

// Service is the stateless telemetry query service. It is safe for concurrent use.
type Service struct {
	repo  repository.Repository
	clock clockwork.Clock
	log   *slog.Logger
}

// New returns a Service. clock and log may be nil.
func New(repo repository.Repository, clock clockwork.Clock, log *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: clock, log: log}
}

// Hosts returns every host with its last-seen time, most recent first.
func (s *Service) Hosts(ctx context.Context) ([]domain.HostSummary, error) {
	start := s.clock.Now()
	hosts, err := s.repo.ListHosts(ctx)
	metrics.ObserveQuery("list_hosts", s.clock.Since(start), err)
	return hosts, err
}

// TopicGroups returns the topics of host grouped by their first "/" segment. Topics without "/" go to
// the "other" group. Groups are ordered by prefix and topics ascending within each group.
func (s *Service) TopicGroups(ctx context.Context, host string) ([]domain.TopicGroup, error) {
	start := s.clock.Now()
	topics, err := s.repo.ListTopics(ctx, host)
	metrics.ObserveQuery("list_topics", s.clock.Since(start), err)
	if err != nil {
		return nil, err
	}
	return GroupTopics(topics), nil
}

// GroupTopics groups topics by prefix. See TopicGroups.
func GroupTopics(topics []string) []domain.TopicGroup {
	byPrefix := map[string][]string{}
	for _, t := range topics {
		prefix := domain.OtherTopicGroup
		if i := strings.Index(t, "/"); i >= 0 {
			prefix = t[:i]
		}
		byPrefix[prefix] = append(byPrefix[prefix], t)
	}
	groups := make([]domain.TopicGroup, 0, len(byPrefix))
	for prefix, ts := range byPrefix {
		sort.Strings(ts)
		groups = append(groups, domain.TopicGroup{Prefix: prefix, Topics: ts})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Prefix < groups[j].Prefix })
	return groups
}

// Fields returns the numeric columns populated for (host, topic).
func (s *Service) Fields(ctx context.Context, host, topic string) ([]domain.ColumnDescriptor, error) {
	start := s.clock.Now()
	cols, err := s.repo.ListPopulatedColumns(ctx, host, topic)
	metrics.ObserveQuery("list_populated_columns", s.clock.Since(start), err)
	return cols, err
}

// Series returns the points of field for (host, topic) over rangeToken, resolved against the service clock.
// field must be one of Fields(host, topic); otherwise ErrUnknownField.
func (s *Service) Series(ctx context.Context, host, topic, field, rangeToken string) (*domain.Series, error) {
	if !repository.ValidIdentifier(field) {
		return nil, ErrUnknownField
	}
	cols, err := s.Fields(ctx, host, topic)
	if err != nil {
		return nil, err
	}
	if !containsColumn(cols, field) {
		return nil, ErrUnknownField
	}

	rng := timerange.Normalize(rangeToken)
	window := timerange.Window(rng, s.clock.Now().UTC())

	start := s.clock.Now()
	points, err := s.repo.QueryField(ctx, host, topic, field, &window.Start, window.End)
	metrics.ObserveQuery("query_field", s.clock.Since(start), err)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidIdentifier) {
			return nil, ErrUnknownField
		}
		return nil, err
	}
	metrics.TelemetryPointsReturned.Observe(float64(len(points)))
	s.log.Debug("telemetry: series", "host", host, "topic", topic, "field", field, "range", rng, "points", len(points))

	return &domain.Series{
		Host:   host,
		Topic:  topic,
		Field:  field,
		Range:  rng,
		Window: window,
		Points: points,
	}, nil
}

func containsColumn(cols []domain.ColumnDescriptor, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}
