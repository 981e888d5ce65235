package models

// Envelope is the body POSTed to subscribers.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
