package ridestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/models"
)

// Postgres persists rides and their update log in two tables, indexed by
// rider and by ride respectively (see migrations/001_create_rides.sql).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) CreateRide(ctx context.Context, riderID string, pickup, drop models.Coordinate, distanceKm, durationMin, fare float64, vehicleType string) (string, error) {
	id := newID()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rides(id, rider_id, pickup_lat, pickup_lon, drop_lat, drop_lon, distance_km, duration_min, fare, vehicle_type, status, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		id, riderID, pickup.Lat, pickup.Lon, drop.Lat, drop.Lon,
		distanceKm, durationMin, fare, vehicleType, string(models.StatusPending), time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) GetRide(ctx context.Context, rideID string) (models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, rider_id, pickup_lat, pickup_lon, drop_lat, drop_lon, distance_km, duration_min, fare, vehicle_type, status, created_at,
		        driver_id, driver_name, driver_rating, driver_vehicle
		 FROM rides WHERE id=$1`, rideID)
	return scanRide(row)
}

func (p *Postgres) ListByRider(ctx context.Context, riderID string) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, rider_id, pickup_lat, pickup_lon, drop_lat, drop_lon, distance_km, duration_min, fare, vehicle_type, status, created_at,
		        driver_id, driver_name, driver_rating, driver_vehicle
		 FROM rides WHERE rider_id=$1 ORDER BY created_at DESC`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateStatus(ctx context.Context, rideID string, status models.Status) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE rides SET status=$1 WHERE id=$2`, string(status), rideID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ride_updates(ride_id, status, updated_at) VALUES($1,$2,$3)`,
		rideID, string(status), time.Now())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) AssignDriver(ctx context.Context, rideID string, d models.Driver) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE rides SET status=$1, driver_id=$2, driver_name=$3, driver_rating=$4, driver_vehicle=$5 WHERE id=$6 AND status=$7`,
		string(models.StatusDriverAssigned), d.ID, d.Name, d.Rating, d.VehicleType, rideID, string(models.StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rides WHERE id=$1)`, rideID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ride_updates(ride_id, status, updated_at) VALUES($1,$2,$3)`,
		rideID, string(models.StatusDriverAssigned), time.Now())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) AppendUpdate(ctx context.Context, u models.RideUpdate) error {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now()
	}
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO ride_updates(ride_id, driver_lat, driver_lon, status, updated_at)
		 SELECT $1, $2, $3, $4, $5 WHERE EXISTS (SELECT 1 FROM rides WHERE id=$1)`,
		u.RideID, u.DriverLat, u.DriverLon, u.Status, u.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) LatestUpdate(ctx context.Context, rideID string) (models.RideUpdate, error) {
	if err := p.rideExists(ctx, rideID); err != nil {
		return models.RideUpdate{}, err
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT ride_id, driver_lat, driver_lon, status, updated_at
		 FROM ride_updates WHERE ride_id=$1 ORDER BY updated_at DESC, seq DESC LIMIT 1`, rideID)
	u, err := scanUpdate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RideUpdate{}, ErrNoUpdates
	}
	return u, err
}

func (p *Postgres) ListUpdates(ctx context.Context, rideID string) ([]models.RideUpdate, error) {
	if err := p.rideExists(ctx, rideID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT ride_id, driver_lat, driver_lon, status, updated_at
		 FROM ride_updates WHERE ride_id=$1 ORDER BY seq ASC`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RideUpdate
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) rideExists(ctx context.Context, rideID string) error {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM rides WHERE id=$1`, rideID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (models.Ride, error) {
	var r models.Ride
	var status string
	var driverID, driverName, driverVehicle sql.NullString
	var driverRating sql.NullFloat64
	err := row.Scan(&r.ID, &r.RiderID, &r.Pickup.Lat, &r.Pickup.Lon, &r.Drop.Lat, &r.Drop.Lon,
		&r.DistanceKm, &r.DurationMin, &r.Fare, &r.VehicleType, &status, &r.CreatedAt,
		&driverID, &driverName, &driverRating, &driverVehicle)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, ErrNotFound
	}
	if err != nil {
		return models.Ride{}, err
	}
	r.Status = models.Status(status)
	r.DriverID = driverID.String
	r.DriverName = driverName.String
	r.DriverRating = driverRating.Float64
	r.DriverVehicle = driverVehicle.String
	return r, nil
}

func scanUpdate(row rowScanner) (models.RideUpdate, error) {
	var u models.RideUpdate
	var lat, lon sql.NullFloat64
	if err := row.Scan(&u.RideID, &lat, &lon, &u.Status, &u.UpdatedAt); err != nil {
		return models.RideUpdate{}, err
	}
	if lat.Valid {
		u.DriverLat = &lat.Float64
	}
	if lon.Valid {
		u.DriverLon = &lon.Float64
	}
	return u, nil
}
