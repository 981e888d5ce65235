package models

// Subscription is a webhook registration keyed by its callback URL.
type Subscription struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"-"`
}

// SubscriptionView is the listing shape; the secret is write-only.
type SubscriptionView struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s Subscription) Handles(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

func (s Subscription) View() SubscriptionView {
	events := make([]string, len(s.Events))
	copy(events, s.Events)
	return SubscriptionView{URL: s.URL, Events: events}
}
