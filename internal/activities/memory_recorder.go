package activities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRecorder keeps activities in memory for tests and local development.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Activity
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Append(ctx context.Context, activity Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, activity)
	return nil
}

// Entries returns a copy of everything appended so far.
func (r *MemoryRecorder) Entries() []Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Activity(nil), r.entries...)
}
