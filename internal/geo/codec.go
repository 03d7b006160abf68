// Package geo переводит координаты отчёта между представлениями,
// которые встречаются на пути от БД до клиента: GeoJSON, WKT, точка Postgres
// и hex EWKB из PostGIS.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Point координата в WGS84.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Orb возвращает точку в виде orb.Point (X = долгота, Y = широта).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lon, p.Lat)
}

func newPoint(lon, lat float64) (Point, bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return Point{}, false
	}
	return Point{Lon: lon, Lat: lat}, true
}

// Encode возвращает WKT для записи в geography колонку: POINT(<lon> <lat>).
func Encode(lon, lat float64) string {
	return wkt.MarshalString(orb.Point{lon, lat})
}

type matcher struct {
	name  string
	match func(raw any) (Point, bool)
}

// Порядок важен: строковые форматы различаются по первому символу,
// EWKB проверяется до общего JSON разбора.
var matchers = []matcher{
	{name: "geojson-object", match: decodeGeoJSONObject},
	{name: "wkt", match: stringMatcher(decodeWKT)},
	{name: "postgres-point", match: stringMatcher(decodePostgresPoint)},
	{name: "ewkb-hex", match: stringMatcher(decodeEWKBHex)},
	{name: "geojson-string", match: stringMatcher(decodeGeoJSONString)},
}

// Decode пытается распознать координату в raw. Неизвестный или битый ввод
// даёт ok == false, паники внутри отдельных разборщиков гасятся.
func Decode(raw any) (Point, bool) {
	if raw == nil {
		return Point{}, false
	}
	for _, m := range matchers {
		if p, ok := safeMatch(m, raw); ok {
			return p, true
		}
	}
	return Point{}, false
}

func safeMatch(m matcher, raw any) (p Point, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p, ok = Point{}, false
		}
	}()
	return m.match(raw)
}

func stringMatcher(fn func(string) (Point, bool)) func(any) (Point, bool) {
	return func(raw any) (Point, bool) {
		switch v := raw.(type) {
		case string:
			return fn(v)
		case []byte:
			return fn(string(v))
		default:
			return Point{}, false
		}
	}
}
