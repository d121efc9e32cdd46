package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/plantops/plantops/internal/models"
)

// RecordingNotifier captures sent notifications. Set Err to make every send
// fail.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	Err  error
}

// Send records n and returns Err.
func (r *RecordingNotifier) Send(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, n)
	return r.Err
}

// Sent returns a copy of everything sent so far.
func (r *RecordingNotifier) Sent() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.Notification(nil), r.sent...)
}

// ErrNotifierDown is a ready-made delivery failure.
var ErrNotifierDown = errors.New("notification channel unavailable")

// StaticDirectory maps capabilities to fixed user IDs.
type StaticDirectory map[models.Capability][]string

// UsersWithCapabilities returns the distinct users holding any of caps.
func (d StaticDirectory) UsersWithCapabilities(_ context.Context, caps ...models.Capability) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, c := range caps {
		for _, u := range d[c] {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}
