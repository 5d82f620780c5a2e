package assignment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sql-sandbox/pkg/metrics"
	"sql-sandbox/pkg/redis"
)

const cachePrefix = "assignments:"

// Service reads the catalog through an optional Redis cache.
type Service struct {
	repo  *Repository
	cache *redis.Redisdb
	ttl   time.Duration
	log   *zap.Logger
}

func NewService(repo *Repository, cache *redis.Redisdb, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, log: log}
}

func (s *Service) List(ctx context.Context, q ListQuery) (*ListResponse, error) {
	key := fmt.Sprintf("%slist:%s:%d:%d", cachePrefix, q.Difficulty, q.Page, q.PageSize)
	var cached ListResponse
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := &ListResponse{Page: q.Page, PageSize: q.PageSize, Total: total, Items: items}
	s.toCache(ctx, key, out)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Assignment, error) {
	key := cachePrefix + "id:" + id
	var cached Assignment
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, key, a)
	return a, nil
}

// LookupSchemaContext returns the schema and sample tables an assignment's
// queries run against.
func (s *Service) LookupSchemaContext(ctx context.Context, assignmentID string) (*SchemaContext, error) {
	a, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return &SchemaContext{Schema: a.SchemaContext, Tables: a.SampleTables}, nil
}

// Seed creates the catalog tables if needed, upserts items and drops every
// cached catalog entry.
func (s *Service) Seed(ctx context.Context, items []Assignment) error {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, a := range items {
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		s.log.Info("assignment seeded", zap.String("id", a.ID), zap.String("difficulty", a.Difficulty))
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		s.log.Warn("catalog cache not invalidated", zap.Error(err))
	}
	return nil
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if !s.cache.Enabled() {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		metrics.CatalogCache.WithLabelValues("error").Inc()
		s.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	case found:
		metrics.CatalogCache.WithLabelValues("hit").Inc()
		return true
	default:
		metrics.CatalogCache.WithLabelValues("miss").Inc()
		return false
	}
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
		s.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
