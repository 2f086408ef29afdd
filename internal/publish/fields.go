package publish

// FieldMapping pairs an internal sensor field name with the name the remote
// API expects.
type FieldMapping struct {
	Internal string
	External string
}

// FieldMap is the ordered internal→external rename table for one channel.
// These tables are fixed domain contracts, not runtime configuration.
type FieldMap []FieldMapping

// WeatherFields maps the weather station's day-file columns to the API names.
var WeatherFields = FieldMap{
	{"Temperature", "TEMP"},
	{"Humidity", "HR"},
	{"RainRate", "LLUVIA"},
	{"WindSpeed", "VV"},
	{"WindDirection", "DV"},
	{"Pressure", "PA"},
	{"UV", "UV"},
	{"SolarRadiation", "RS"},
}

// WinAQMSFields maps the WinAQMS analyzer channels to the API names.
var WinAQMSFields = FieldMap{
	{"C1", "CO"},
	{"C2", "NO"},
	{"C3", "NO2"},
	{"C4", "NOx"},
	{"C5", "O3"},
	{"C6", "PM10"},
}
