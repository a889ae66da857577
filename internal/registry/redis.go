package registry

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// Redis implements Registry on top of a Redis instance shared by the API
// server and the location consumer. Each driver is a hash keyed by id,
// positions are mirrored into a GEO set for map rendering, and a plain
// list preserves insertion order for the listing queries.
type Redis struct {
	client *redis.Client
	geoKey string
}

const driverIDsKey = "drivers:ids"

// reserveScript is the conditional availability flip. Running it as a
// single EVAL makes the reservation linearizable per driver: two racing
// dispatchers can never both see "1".
var reserveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "available") == "1" then
  redis.call("HSET", KEYS[1], "available", "0")
  return 1
end
return 0
`)

func NewRedis(addr, password, geoKey string) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, geoKey: geoKey}
}

// NewRedisWithClient is used by the consumer, which builds its own client
// for readiness probing.
func NewRedisWithClient(c *redis.Client, geoKey string) *Redis {
	return &Redis{client: c, geoKey: geoKey}
}

func (r *Redis) AddDriver(ctx context.Context, name string, lat, lon float64, vehicleType string, rating float64) (string, error) {
	id := newID()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, driverKey(id), map[string]interface{}{
		"name":      name,
		"vehicle":   vehicleType,
		"rating":    strconv.FormatFloat(rating, 'f', -1, 64),
		"available": "1",
		"lat":       strconv.FormatFloat(lat, 'f', -1, 64),
		"lon":       strconv.FormatFloat(lon, 'f', -1, 64),
		"updated":   time.Now().Format(time.RFC3339),
	})
	pipe.RPush(ctx, driverIDsKey, id)
	pipe.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Longitude: lon, Latitude: lat, Name: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) ListAvailable(ctx context.Context) ([]models.Driver, error) {
	return r.list(ctx, true)
}

func (r *Redis) ListAll(ctx context.Context) ([]models.Driver, error) {
	return r.list(ctx, false)
}

func (r *Redis) list(ctx context.Context, onlyAvailable bool) ([]models.Driver, error) {
	ids, err := r.client.LRange(ctx, driverIDsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Driver, 0, len(ids))
	for _, id := range ids {
		m, err := r.client.HGetAll(ctx, driverKey(id)).Result()
		if err != nil || len(m) == 0 {
			continue
		}
		d := driverFromHash(id, m)
		if onlyAvailable && !d.Available {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *Redis) UpdateLocation(ctx context.Context, driverID string, lat, lon float64, available *bool) error {
	n, err := r.client.Exists(ctx, driverKey(driverID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	fields := map[string]interface{}{
		"lat":     strconv.FormatFloat(lat, 'f', -1, 64),
		"lon":     strconv.FormatFloat(lon, 'f', -1, 64),
		"updated": time.Now().Format(time.RFC3339),
	}
	if available != nil {
		fields["available"] = boolField(*available)
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, driverKey(driverID), fields)
	pipe.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Longitude: lon, Latitude: lat, Name: driverID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Reserve(ctx context.Context, driverID string) (bool, error) {
	res, err := reserveScript.Run(ctx, r.client, []string{driverKey(driverID)}).Int()
	if err != nil {
		return false, err
	}
	if res == -1 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

func (r *Redis) Release(ctx context.Context, driverID string, lat, lon float64) error {
	avail := true
	return r.UpdateLocation(ctx, driverID, lat, lon, &avail)
}

func driverKey(id string) string { return "driver:" + id }

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func driverFromHash(id string, m map[string]string) models.Driver {
	d := models.Driver{ID: id, Name: m["name"], VehicleType: m["vehicle"]}
	if v, err := strconv.ParseFloat(m["rating"], 64); err == nil {
		d.Rating = v
	}
	if v, err := strconv.ParseFloat(m["lat"], 64); err == nil {
		d.Loc.Lat = v
	}
	if v, err := strconv.ParseFloat(m["lon"], 64); err == nil {
		d.Loc.Lon = v
	}
	d.Available = m["available"] == "1"
	if t, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
		d.Updated = t
	}
	return d
}
