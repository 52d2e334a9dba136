package model

import "strings"

// AlertType identifies which threshold rule produced an alert.
type AlertType string

const (
	AlertHighTemperature AlertType = "high_temperature"
	AlertLowHumidity     AlertType = "low_humidity"
)

// Severity of an alert. The threshold rules currently only emit warnings,
// the full set is accepted at the intake boundary.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AlertTypes lists every recognized alert type, in rule-evaluation order.
func AlertTypes() []AlertType {
	return []AlertType{AlertHighTemperature, AlertLowHumidity}
}

// Severities lists every recognized severity.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityError}
}

func (t AlertType) Valid() bool {
	return t == AlertHighTemperature || t == AlertLowHumidity
}

func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// AlertTypeNames returns the accepted alert types joined for error messages.
func AlertTypeNames() string {
	names := make([]string, 0, 2)
	for _, t := range AlertTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// SeverityNames returns the accepted severities joined for error messages.
func SeverityNames() string {
	names := make([]string, 0, 3)
	for _, s := range Severities() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// Alert is a threshold violation derived from a single Reading. It is both
// the persisted record's source and the wire payload of the intake boundary,
// matching the controller->server notification body.
type Alert struct {
	Type       AlertType `json:"alert_type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Timestamp  string    `json:"timestamp"` // RFC3339, set when the alert is raised
	SensorData Reading   `json:"sensor_data"`
}
