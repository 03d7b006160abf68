package geo

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// minEWKBHexLen точка с SRID: 1 байт порядка + 4 типа + 4 SRID + 16 координат.
const minEWKBHexLen = 50

const ewkbSRIDFlag = 0x20000000

var hexPattern = regexp.MustCompile(`^[0-9A-Fa-f]+$`)

// decodeGeoJSONObject разбирает уже декодированный объект с полем coordinates.
func decodeGeoJSONObject(raw any) (Point, bool) {
	switch v := raw.(type) {
	case orb.Point:
		return newPoint(v[0], v[1])
	case *geojson.Geometry:
		if v == nil {
			return Point{}, false
		}
		return fromOrbGeometry(v.Geometry())
	case geojson.Geometry:
		return fromOrbGeometry((&v).Geometry())
	case map[string]any:
		return coordinatesFromMap(v)
	case json.RawMessage:
		trimmed := strings.TrimSpace(string(v))
		if !strings.HasPrefix(trimmed, "{") {
			return Point{}, false
		}
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return Point{}, false
		}
		return coordinatesFromMap(m)
	default:
		return Point{}, false
	}
}

// decodeWKT разбирает POINT(lon lat), в том числе с префиксом SRID=4326;.
func decodeWKT(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		s = strings.TrimSpace(s[i+1:])
	}
	if !strings.HasPrefix(strings.ToUpper(s), "POINT(") {
		return Point{}, false
	}

	p, err := wkt.UnmarshalPoint("POINT" + s[len("POINT"):])
	if err != nil {
		return Point{}, false
	}
	return newPoint(p[0], p[1])
}

// decodePostgresPoint разбирает текстовую форму типа point: (lon,lat) или (lon lat).
func decodePostgresPoint(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return Point{}, false
	}

	inner := s[1 : len(s)-1]
	parts := strings.FieldsFunc(inner, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(parts) != 2 {
		return Point{}, false
	}
	return parsePair(parts[0], parts[1])
}

// decodeEWKBHex разбирает hex EWKB, в котором PostGIS отдаёт geography.
// Байт 0 задаёт порядок байт, 1..4 тип геометрии. Флаг 0x20000000 в типе
// означает, что за ним идёт 4-байтовый SRID и координаты начинаются с 9-го байта.
func decodeEWKBHex(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, `\x`), "0x")
	if len(s) < minEWKBHexLen || len(s)%2 != 0 || !hexPattern.MatchString(s) {
		return Point{}, false
	}

	data, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, false
	}
	if data[0] > 1 {
		return Point{}, false
	}

	var order binary.ByteOrder = binary.BigEndian
	if data[0] == 1 {
		order = binary.LittleEndian
	}
	typ := order.Uint32(data[1:5])
	offset := 5
	if typ&ewkbSRIDFlag != 0 {
		offset = 9
	}
	if typ&0xff != 1 || len(data) < offset+16 {
		return Point{}, false
	}

	geom, _, err := ewkb.Unmarshal(data)
	if err != nil {
		return Point{}, false
	}
	p, ok := geom.(orb.Point)
	if !ok {
		return Point{}, false
	}
	return newPoint(p[0], p[1])
}

// decodeGeoJSONString разбирает JSON строку с полем coordinates.
func decodeGeoJSONString(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return Point{}, false
	}

	if g, err := geojson.UnmarshalGeometry([]byte(s)); err == nil && g != nil {
		if p, ok := fromOrbGeometry(g.Geometry()); ok {
			return p, true
		}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Point{}, false
	}
	return coordinatesFromMap(m)
}

func fromOrbGeometry(g orb.Geometry) (Point, bool) {
	p, ok := g.(orb.Point)
	if !ok {
		return Point{}, false
	}
	return newPoint(p[0], p[1])
}

func coordinatesFromMap(m map[string]any) (Point, bool) {
	raw, ok := m["coordinates"]
	if !ok {
		return Point{}, false
	}

	var coords []any
	switch v := raw.(type) {
	case []any:
		coords = v
	case []float64:
		if len(v) < 2 {
			return Point{}, false
		}
		return newPoint(v[0], v[1])
	default:
		return Point{}, false
	}
	if len(coords) < 2 {
		return Point{}, false
	}

	lon, ok := toFloat(coords[0])
	if !ok {
		return Point{}, false
	}
	lat, ok := toFloat(coords[1])
	if !ok {
		return Point{}, false
	}
	return newPoint(lon, lat)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func parsePair(a, b string) (Point, bool) {
	lon, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return Point{}, false
	}
	return newPoint(lon, lat)
}
