package service

import (
	"context"
	"strings"

	apperrors "busticket/internal/errors"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/repository"
	"busticket/internal/search"
)

// RouteIndex is satisfied by search.ElasticsearchClient.
type RouteIndex interface {
	IndexRoute(ctx context.Context, doc *search.RouteDocument) error
	SearchRoutes(ctx context.Context, startKey, endKey string) ([]models.RouteSearchResult, error)
}

type RouteService struct {
	store repository.CatalogStore
	index RouteIndex
}

// NewRouteService accepts a nil index; search then runs against Postgres.
func NewRouteService(store repository.CatalogStore, index RouteIndex) *RouteService {
	return &RouteService{store: store, index: index}
}

// NormalizeLocation lowercases a location and collapses its whitespace so that
// " New  Delhi" and "new delhi" are the same key.
func NormalizeLocation(location string) string {
	return strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

func (s *RouteService) Create(ctx context.Context, req *models.CreateRouteRequest) (*models.Route, error) {
	start := strings.TrimSpace(req.StartLocation)
	end := strings.TrimSpace(req.EndLocation)
	if start == "" {
		return nil, apperrors.Validation("startLocation", "start location is required")
	}
	if end == "" {
		return nil, apperrors.Validation("endLocation", "end location is required")
	}

	route := &models.Route{
		StartLocation: start,
		EndLocation:   end,
		StartKey:      NormalizeLocation(start),
		EndKey:        NormalizeLocation(end),
		DistanceKm:    req.DistanceKm,
		DurationMin:   req.DurationMin,
		BusIDs:        uniqueIDs(req.BusIDs),
	}
	if route.StartKey == route.EndKey {
		return nil, apperrors.Validation("endLocation", "end location must differ from start location")
	}

	existing, err := s.store.FindRoute(ctx, route.StartKey, route.EndKey)
	if err != nil {
		return nil, apperrors.Persistence("failed to look up route", err)
	}
	if existing != nil {
		return nil, apperrors.Validation("startLocation", "route "+start+" - "+end+" already exists")
	}

	if len(route.BusIDs) > 0 {
		buses, err := s.store.BusSummaries(ctx, route.BusIDs)
		if err != nil {
			return nil, apperrors.Persistence("failed to load buses", err)
		}
		if len(buses) != len(route.BusIDs) {
			return nil, apperrors.NotFound("bus")
		}
	}

	if err := s.store.CreateRoute(ctx, route); err != nil {
		return nil, apperrors.Persistence("failed to create route", err)
	}

	logger.WithContext(ctx).Info("Route created", "route_id", route.ID, "start", route.StartKey, "end", route.EndKey)
	s.reindex(ctx, route)
	return route, nil
}

// AttachBus adds a bus to the route between from and to, creating the route
// when it does not exist yet.
func (s *RouteService) AttachBus(ctx context.Context, from, to string, busID int64) (*models.Route, error) {
	route, err := s.store.FindRoute(ctx, NormalizeLocation(from), NormalizeLocation(to))
	if err != nil {
		return nil, apperrors.Persistence("failed to look up route", err)
	}
	if route == nil {
		return s.Create(ctx, &models.CreateRouteRequest{StartLocation: from, EndLocation: to, BusIDs: []int64{busID}})
	}

	if err := s.store.AttachBus(ctx, route.ID, busID); err != nil {
		return nil, apperrors.Persistence("failed to attach bus", err)
	}
	route.BusIDs = uniqueIDs(append(route.BusIDs, busID))
	s.reindex(ctx, route)
	return route, nil
}

// Search finds routes by normalized start and end keys. The index is tried
// first; Postgres answers when there is no index or it fails.
func (s *RouteService) Search(ctx context.Context, from, to string) ([]models.RouteSearchResult, error) {
	startKey, endKey := NormalizeLocation(from), NormalizeLocation(to)
	if startKey == "" || endKey == "" {
		return nil, apperrors.InvalidRequest("both from and to are required")
	}

	if s.index != nil {
		results, err := s.index.SearchRoutes(ctx, startKey, endKey)
		if err == nil {
			return results, nil
		}
		logger.WithContext(ctx).Warn("Route index search failed, falling back to database", "error", err)
	}

	route, err := s.store.FindRoute(ctx, startKey, endKey)
	if err != nil {
		return nil, apperrors.Persistence("failed to search routes", err)
	}
	if route == nil {
		return []models.RouteSearchResult{}, nil
	}

	doc, err := s.document(ctx, route)
	if err != nil {
		return nil, err
	}
	return []models.RouteSearchResult{doc.Result()}, nil
}

// Reindex pushes every route into the search index and returns the count.
func (s *RouteService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	routes, err := s.store.ListRoutes(ctx)
	if err != nil {
		return 0, apperrors.Persistence("failed to list routes", err)
	}

	for i := range routes {
		doc, err := s.document(ctx, &routes[i])
		if err != nil {
			return i, err
		}
		if err := s.index.IndexRoute(ctx, doc); err != nil {
			return i, err
		}
	}
	return len(routes), nil
}

// ReindexBus refreshes the index entries of every route the bus serves.
func (s *RouteService) ReindexBus(ctx context.Context, busID int64) error {
	if s.index == nil {
		return nil
	}

	routes, err := s.store.RoutesForBus(ctx, busID)
	if err != nil {
		return apperrors.Persistence("failed to list routes for bus", err)
	}

	for i := range routes {
		doc, err := s.document(ctx, &routes[i])
		if err != nil {
			return err
		}
		if err := s.index.IndexRoute(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *RouteService) reindex(ctx context.Context, route *models.Route) {
	if s.index == nil {
		return
	}
	doc, err := s.document(ctx, route)
	if err == nil {
		err = s.index.IndexRoute(ctx, doc)
	}
	if err != nil {
		logger.WithContext(ctx).Error("Failed to index route", "route_id", route.ID, "error", err)
	}
}

func (s *RouteService) document(ctx context.Context, route *models.Route) (*search.RouteDocument, error) {
	buses, err := s.store.BusSummaries(ctx, route.BusIDs)
	if err != nil {
		return nil, apperrors.Persistence("failed to load buses", err)
	}
	return &search.RouteDocument{
		ID:            route.ID,
		StartLocation: route.StartLocation,
		EndLocation:   route.EndLocation,
		StartKey:      route.StartKey,
		EndKey:        route.EndKey,
		DistanceKm:    route.DistanceKm,
		DurationMin:   route.DurationMin,
		Buses:         buses,
	}, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
