package model

// Reading is one environmental sample as published by the sensor over MQTT.
// Timestamp is the producer's wall clock and is advisory only: ordering and
// deduplication rely on broker delivery order, never on this field.
type Reading struct {
	Temp      float64 `json:"temp"`
	Humidity  float64 `json:"humidity"`
	Timestamp string  `json:"timestamp"`
}
