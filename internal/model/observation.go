package model

// Columns returned by the Tempest API for CSV-format results, in the order
// they are stored in the weather table.
var Columns = []string{
	"device_id",
	"timestamp",
	"type",
	"bucket_step_minutes",
	"wind_lull",
	"wind_avg",
	"wind_gust",
	"wind_dir",
	"wind_interval",
	"pressure",
	"temperature",
	"humidity",
	"lux",
	"uv",
	"solar_radiation",
	"precip",
	"precip_type",
	"strike_distance",
	"strike_count",
	"battery",
	"report_interval",
	"local_daily_precip",
	"precip_final",
	"local_daily_precip_final",
	"precip_analysis_type",
}

// ColumnKind describes how a column's values are typed in SQL and how the
// API client should convert the raw CSV cell.
type ColumnKind int

const (
	KindReal ColumnKind = iota
	KindInteger
	KindText
)

// Most columns hold real numbers; these are the exceptions.
var columnKinds = map[string]ColumnKind{
	"device_id":            KindInteger,
	"timestamp":            KindInteger,
	"type":                 KindText,
	"bucket_step_minutes":  KindInteger,
	"precip_type":          KindText,
	"precip_analysis_type": KindText,
}

// KindOf returns the storage kind for a named column.
func KindOf(column string) ColumnKind {
	if k, ok := columnKinds[column]; ok {
		return k
	}
	return KindReal
}

// Observation is one reading for one device at one instant. The sync engine
// only ever inspects the key pair (DeviceID, Timestamp); the sensor values
// travel through as an opaque bag keyed by column name. A column absent from
// Fields is stored as NULL.
type Observation struct {
	DeviceID  int64
	Timestamp int64
	Fields    map[string]any
}
