package geo

import (
	"encoding/json"
	"fmt"
)

// Location хранит координату в исходном представлении.
// Из БД приходит hex EWKB, из realtime канала строка или объект GeoJSON.
// Разбор откладывается до Point, чтобы битая точка не ломала чтение строки целиком.
type Location struct {
	raw any
}

// NewLocation оборачивает произвольное представление.
func NewLocation(raw any) Location {
	return Location{raw: raw}
}

// Raw исходное значение.
func (l Location) Raw() any {
	return l.raw
}

func (l Location) IsZero() bool {
	return l.raw == nil
}

// Point декодирует координату.
func (l Location) Point() (Point, bool) {
	return Decode(l.raw)
}

// Scan реализует sql.Scanner.
func (l *Location) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		l.raw = nil
	case string:
		l.raw = v
	case []byte:
		l.raw = string(v)
	default:
		return fmt.Errorf("geo: неподдерживаемый тип колонки location %T", src)
	}
	return nil
}

func (l *Location) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("geo: location: %w", err)
	}
	l.raw = v
	return nil
}

func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.raw)
}
