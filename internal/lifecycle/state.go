package lifecycle

import (
	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
)

type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseInitializing  Phase = "INITIALIZING"
	PhaseQRPending     Phase = "QR_PENDING"
	PhaseAuthenticated Phase = "AUTHENTICATED"
	PhaseDisconnected  Phase = "DISCONNECTED"
)

var phaseNames = []string{
	string(PhaseUninitialized),
	string(PhaseInitializing),
	string(PhaseQRPending),
	string(PhaseAuthenticated),
	string(PhaseDisconnected),
}

// state is only touched with Manager.mu held.
type state struct {
	phase         Phase
	authenticated bool
	initialized   bool
	qrDisplayed   bool
	currentQR     string
	retryCount    int
}

// clear drops everything tied to the current session. The retry budget
// survives.
func (s *state) clear() {
	s.authenticated = false
	s.initialized = false
	s.qrDisplayed = false
	s.currentQR = ""
}

func (s *state) showQR(code string) {
	s.authenticated = false
	s.qrDisplayed = true
	s.currentQR = code
	s.setPhase(PhaseQRPending)
}

func (s *state) markAuthenticated(ready bool) {
	s.authenticated = true
	s.qrDisplayed = false
	s.currentQR = ""
	if ready {
		s.initialized = true
	}
	s.retryCount = 0
	s.setPhase(PhaseAuthenticated)
}

func (s *state) setPhase(p Phase) {
	s.phase = p
	metrics.SetPhase(string(p), phaseNames)
}

func (s *state) status() models.ConnectionStatus {
	return models.ConnectionStatus{
		Authenticated: s.authenticated,
		Initialized:   s.initialized,
		QRDisplayed:   s.qrDisplayed,
	}
}
