package models

type ConnectionStatus struct {
	Authenticated bool `json:"authenticated"`
	Initialized   bool `json:"initialized"`
	QRDisplayed   bool `json:"qrDisplayed"`
}
