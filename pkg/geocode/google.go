package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const (
	DefaultGoogleEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"
	DefaultSleep          = 150 * time.Millisecond
)

// ErrNoResult means the service answered but found nothing usable.
var ErrNoResult = errors.New("no geocode result")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Geocoder resolves an address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// GoogleGeocoder calls the Google Geocoding API in Japanese with a Japan region bias.
type GoogleGeocoder struct {
	client   *whttp.Client
	key      string
	endpoint string
	limiter  *rate.Limiter
}

// NewGoogleGeocoder spaces requests by sleep, DefaultSleep when zero.
func NewGoogleGeocoder(client *whttp.Client, apiKey, endpoint string, sleep time.Duration) *GoogleGeocoder {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if sleep <= 0 {
		sleep = DefaultSleep
	}
	return &GoogleGeocoder{
		client:   client,
		key:      apiKey,
		endpoint: endpoint,
		limiter:  rate.NewLimiter(rate.Every(sleep), 1),
	}
}

// Geocode tries the address as given, then once more without the postal code and with
// half-width digits when that changes anything.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	first := cleanSpaces(hyphens.Replace(address))
	p, err := g.lookup(ctx, first)
	if err == nil {
		return p, nil
	}
	utils.Log.Debugf("[geocode] %q: %v", first, err)

	second := simplify(first)
	if second == "" || second == first {
		return Point{}, err
	}
	p, err = g.lookup(ctx, second)
	if err != nil {
		utils.Log.Debugf("[geocode] %q: %v", second, err)
	}
	return p, err
}

func (g *GoogleGeocoder) lookup(ctx context.Context, address string) (Point, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Point{}, err
	}
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", g.key)
	q.Set("language", "ja")
	q.Set("region", "jp")

	res, err := g.client.Get(ctx, g.endpoint+"?"+q.Encode())
	if err != nil {
		return Point{}, err
	}
	if !res.OK() {
		return Point{}, fmt.Errorf("geocode returned HTTP %d", res.StatusCode)
	}
	if !gjson.Valid(res.Body) {
		return Point{}, errors.New("geocode returned invalid JSON")
	}

	body := gjson.Parse(res.Body)
	switch status := strings.ToUpper(body.Get("status").String()); status {
	case "OK":
	case "ZERO_RESULTS":
		return Point{}, ErrNoResult
	default:
		return Point{}, fmt.Errorf("geocode status %s: %s", status, body.Get("error_message").String())
	}
	loc := body.Get("results.0.geometry.location")
	lat, lng := loc.Get("lat"), loc.Get("lng")
	if lat.Type != gjson.Number || lng.Type != gjson.Number {
		return Point{}, ErrNoResult
	}
	return Point{Lat: lat.Float(), Lon: lng.Float()}, nil
}
