// Package registry holds the in-memory webhook subscriptions.
package registry

import (
	"errors"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
)

var (
	ErrInvalidInput = errors.New("missing required fields: url, events, secret")
	ErrInvalidURL   = errors.New("invalid URL format")
	ErrNotFound     = errors.New("subscription not found")
)

var validate = validator.New()

type registration struct {
	Events []string `validate:"required,min=1,dive,required"`
	Secret string   `validate:"required"`
}

// Registry maps callback URLs to subscriptions. Listing order is the order
// in which URLs were first registered.
type Registry struct {
	mu    sync.RWMutex
	subs  map[string]models.Subscription
	order []string
}

func New() *Registry {
	return &Registry{subs: make(map[string]models.Subscription)}
}

// Register validates and upserts a subscription. The URL is checked before
// events and secret, so a malformed URL always reports ErrInvalidURL.
func (r *Registry) Register(rawURL string, events []string, secret string) error {
	if err := validate.Var(rawURL, "required"); err != nil {
		return ErrInvalidInput
	}
	if !validURL(rawURL) {
		return ErrInvalidURL
	}
	if err := validate.Struct(registration{Events: events, Secret: secret}); err != nil {
		return ErrInvalidInput
	}

	sub := models.Subscription{
		URL:    rawURL,
		Events: append([]string(nil), events...),
		Secret: secret,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[rawURL]; !exists {
		r.order = append(r.order, rawURL)
	}
	r.subs[rawURL] = sub
	return nil
}

func (r *Registry) List() []models.SubscriptionView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]models.SubscriptionView, 0, len(r.order))
	for _, u := range r.order {
		views = append(views, r.subs[u].View())
	}
	return views
}

func (r *Registry) Remove(rawURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[rawURL]; !ok {
		return ErrNotFound
	}
	delete(r.subs, rawURL)
	for i, u := range r.order {
		if u == rawURL {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Matching returns a snapshot of the subscriptions listening for event.
func (r *Registry) Matching(event string) []models.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Subscription
	for _, u := range r.order {
		if s := r.subs[u]; s.Handles(event) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
