package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"busticket/internal/database"
	"busticket/internal/models"
)

type RouteRepository struct {
	q database.Querier
}

func NewRouteRepository(q database.Querier) *RouteRepository {
	return &RouteRepository{q: q}
}

// route rows carry their bus ids aggregated from route_buses
const routeSelect = `
		SELECT r.id, r.start_location, r.end_location, r.start_key, r.end_key,
		       r.distance_km, r.duration_min, r.created_at,
		       COALESCE(array_agg(rb.bus_id ORDER BY rb.bus_id) FILTER (WHERE rb.bus_id IS NOT NULL), '{}')
		FROM routes r
		LEFT JOIN route_buses rb ON rb.route_id = r.id`

const routeGroupBy = `
		GROUP BY r.id`

func scanRoute(row interface{ Scan(...any) error }) (*models.Route, error) {
	route := &models.Route{}
	err := row.Scan(
		&route.ID,
		&route.StartLocation,
		&route.EndLocation,
		&route.StartKey,
		&route.EndKey,
		&route.DistanceKm,
		&route.DurationMin,
		&route.CreatedAt,
		pq.Array(&route.BusIDs),
	)
	if err != nil {
		return nil, err
	}
	if route.BusIDs == nil {
		route.BusIDs = []int64{}
	}
	return route, nil
}

func (r *RouteRepository) queryRoutes(ctx context.Context, query string, args ...any) ([]models.Route, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *route)
	}

	return routes, rows.Err()
}

// Create inserts the route and its bus links.
func (r *RouteRepository) Create(ctx context.Context, route *models.Route) error {
	query := `
		INSERT INTO routes (start_location, end_location, start_key, end_key, distance_km, duration_min)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		route.StartLocation,
		route.EndLocation,
		route.StartKey,
		route.EndKey,
		route.DistanceKm,
		route.DurationMin,
	).Scan(&route.ID, &route.CreatedAt)
	if err != nil {
		return err
	}

	return r.AddBuses(ctx, route.ID, route.BusIDs)
}

// AddBuses links buses to a route; existing links are kept.
func (r *RouteRepository) AddBuses(ctx context.Context, routeID int64, busIDs []int64) error {
	if len(busIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO route_buses (route_id, bus_id)
		SELECT $1, unnest($2::int[])
		ON CONFLICT DO NOTHING`

	_, err := r.q.ExecContext(ctx, query, routeID, pq.Array(busIDs))
	return err
}

func (r *RouteRepository) GetByID(ctx context.Context, id int64) (*models.Route, error) {
	query := routeSelect + `
		WHERE r.id = $1` + routeGroupBy

	route, err := scanRoute(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return route, err
}

func (r *RouteRepository) GetByKeys(ctx context.Context, startKey, endKey string) (*models.Route, error) {
	query := routeSelect + `
		WHERE r.start_key = $1 AND r.end_key = $2` + routeGroupBy

	route, err := scanRoute(r.q.QueryRowContext(ctx, query, startKey, endKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return route, err
}

// FirstForBus returns the lowest-id route that carries the bus, or nil.
func (r *RouteRepository) FirstForBus(ctx context.Context, busID int64) (*models.Route, error) {
	query := routeSelect + `
		WHERE r.id = (SELECT MIN(route_id) FROM route_buses WHERE bus_id = $1)` + routeGroupBy

	route, err := scanRoute(r.q.QueryRowContext(ctx, query, busID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return route, err
}

func (r *RouteRepository) ListByBus(ctx context.Context, busID int64) ([]models.Route, error) {
	query := routeSelect + `
		WHERE r.id IN (SELECT route_id FROM route_buses WHERE bus_id = $1)` + routeGroupBy + `
		ORDER BY r.id`

	return r.queryRoutes(ctx, query, busID)
}

func (r *RouteRepository) List(ctx context.Context) ([]models.Route, error) {
	query := routeSelect + routeGroupBy + `
		ORDER BY r.id`

	return r.queryRoutes(ctx, query)
}
