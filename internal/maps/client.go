// Package maps talks to the places and directions HTTP APIs and holds the
// small amount of geometry the dispatch flow needs.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	gmaps "googlemaps.github.io/maps"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/metrics"
	"vital-route-api-server/internal/models"
)

const (
	HospitalRadiusMeters = 15000
	HospitalType         = "hospital"
	HospitalKeyword      = "multi speciality hospital emergency"

	cacheSize = 256
	cacheTTL  = 10 * time.Minute
)

var (
	ErrNotConfigured = errors.New("maps: api key not configured")
	ErrNoResults     = errors.New("maps: no results")
)

// NearbyQuery is a places nearby search around Location.
type NearbyQuery struct {
	Location     models.GeoPoint
	RadiusMeters int
	Type         string
	Keyword      string
}

// Route summarizes the first driving route between two points.
type Route struct {
	Summary          string        `json:"summary"`
	DistanceMeters   int           `json:"distanceMeters"`
	DistanceText     string        `json:"distanceText"`
	Duration         time.Duration `json:"duration"`
	DurationText     string        `json:"durationText"`
	OverviewPolyline string        `json:"overviewPolyline"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	api     *gmaps.Client
	nearby  *expirable.LRU[string, []models.Facility]
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds the places and directions client. Without an API key the
// client stays unconfigured and every lookup returns ErrNotConfigured.
func NewClient(cfg config.MapsConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		nearby:  expirable.NewLRU[string, []models.Facility](cacheSize, nil, cacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return c
	}

	clientOpts := []gmaps.ClientOption{gmaps.WithAPIKey(c.apiKey), gmaps.WithHTTPClient(c.http)}
	if c.baseURL != "" {
		clientOpts = append(clientOpts, gmaps.WithBaseURL(c.baseURL))
	}
	api, err := gmaps.NewClient(clientOpts...)
	if err != nil {
		log.WithError(err).Warn("maps: client disabled")
		return c
	}
	c.api = api
	return c
}

func (c *Client) Configured() bool { return c.api != nil }

// NearbyHospitals runs the hospital search used when an ambulance reaches the scene.
func (c *Client) NearbyHospitals(ctx context.Context, at models.GeoPoint) ([]models.Facility, error) {
	return c.NearbySearch(ctx, NearbyQuery{
		Location:     at,
		RadiusMeters: HospitalRadiusMeters,
		Type:         HospitalType,
		Keyword:      HospitalKeyword,
	})
}

// NearbySearch returns facilities sorted as the API ranks them, each with its
// distance from q.Location. Results are cached per ~100 m cell.
func (c *Client) NearbySearch(ctx context.Context, q NearbyQuery) ([]models.Facility, error) {
	if !c.Configured() {
		metrics.PlacesLookups.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}
	key := cacheKey(q)
	if cached, ok := c.nearby.Get(key); ok {
		metrics.PlacesLookups.WithLabelValues("cache_hit").Inc()
		return cached, nil
	}

	resp, err := c.api.NearbySearch(ctx, &gmaps.NearbySearchRequest{
		Location: &gmaps.LatLng{Lat: q.Location.Lat, Lng: q.Location.Lng},
		Radius:   uint(q.RadiusMeters),
		Type:     gmaps.PlaceType(q.Type),
		Keyword:  q.Keyword,
	})
	if err != nil {
		metrics.PlacesLookups.WithLabelValues("error").Inc()
		log.WithError(err).Warn("maps: places search failed")
		return nil, fmt.Errorf("places search: %w", err)
	}

	facilities := make([]models.Facility, 0, len(resp.Results))
	for _, r := range resp.Results {
		loc := models.GeoPoint{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		address := r.Vicinity
		if address == "" {
			address = r.FormattedAddress
		}
		facilities = append(facilities, models.Facility{
			PlaceID:    r.PlaceID,
			Name:       r.Name,
			Address:    address,
			Location:   loc,
			Rating:     float64(r.Rating),
			DistanceKm: math.Round(DistanceKm(q.Location, loc)*10) / 10,
		})
	}
	// ZERO_RESULTS comes back from the library as an empty, error-free response.
	if len(facilities) == 0 {
		metrics.PlacesLookups.WithLabelValues("empty").Inc()
		return nil, ErrNoResults
	}

	metrics.PlacesLookups.WithLabelValues("ok").Inc()
	c.nearby.Add(key, facilities)
	return facilities, nil
}

// Directions returns the first driving route from origin to dest.
func (c *Client) Directions(ctx context.Context, origin, dest models.GeoPoint) (Route, error) {
	if !c.Configured() {
		return Route{}, ErrNotConfigured
	}
	routes, _, err := c.api.Directions(ctx, &gmaps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(dest),
		Mode:        gmaps.TravelModeDriving,
	})
	if err != nil {
		if strings.Contains(err.Error(), "NOT_FOUND") {
			return Route{}, ErrNoResults
		}
		log.WithError(err).Warn("maps: directions failed")
		return Route{}, fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoResults
	}

	r := routes[0]
	route := Route{Summary: r.Summary, OverviewPolyline: r.OverviewPolyline.Points}
	distTexts := make([]string, 0, len(r.Legs))
	for _, leg := range r.Legs {
		route.DistanceMeters += leg.Meters
		route.Duration += leg.Duration
		distTexts = append(distTexts, leg.HumanReadable)
	}
	route.DistanceText = strings.Join(distTexts, " + ")
	route.DurationText = durationText(route.Duration)
	return route, nil
}

// durationText renders a route duration the way the directions API does, e.g.
// "12 mins" or "1 hour 5 mins".
func durationText(d time.Duration) string {
	mins := int(math.Round(d.Minutes()))
	hours, mins := mins/60, mins%60
	unit := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	switch {
	case hours == 0:
		return unit(mins, "min")
	case mins == 0:
		return unit(hours, "hour")
	default:
		return unit(hours, "hour") + " " + unit(mins, "min")
	}
}

// cacheKey rounds to three decimals, roughly a 100 m cell.
func cacheKey(q NearbyQuery) string {
	return fmt.Sprintf("%.3f,%.3f|%d|%s|%s", q.Location.Lat, q.Location.Lng, q.RadiusMeters, q.Type, q.Keyword)
}
