package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Timestamp is a server-assigned instant serialised as seconds + nanoseconds.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// NewTimestamp truncates t to microseconds so values survive a round trip
// through every supported driver.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC().Truncate(time.Microsecond)
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Now returns the current instant as a Timestamp.
func Now() *Timestamp {
	ts := NewTimestamp(time.Now())
	return &ts
}

func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanoseconds)).UTC()
}

func (t Timestamp) Before(o Timestamp) bool {
	if t.Seconds != o.Seconds {
		return t.Seconds < o.Seconds
	}
	return t.Nanoseconds < o.Nanoseconds
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	return t.Time(), nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		*t = Timestamp{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", value)
	}
}

func (t *Timestamp) parse(s string) error {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = NewTimestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// GormDataType implements schema.GormDataTypeInterface.
func (Timestamp) GormDataType() string {
	return "time"
}

// GormDBDataType picks the column type per dialect.
func (Timestamp) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "timestamptz"
	case "mysql":
		return "datetime(6)"
	default:
		return "datetime"
	}
}

// MarshalJSON keeps the {seconds, nanoseconds} wire shape explicit.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	type wire Timestamp
	return json.Marshal(wire(t))
}
