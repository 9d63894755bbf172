package refinement

import (
	"testing"
	"time"
)

func TestExpiryCutoff(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Time
	}{
		{"no ttl keeps everything", 0, time.Time{}},
		{"negative ttl keeps everything", -time.Hour, time.Time{}},
		{"one day", 24 * time.Hour, time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiryCutoff(now, tt.ttl); !got.Equal(tt.want) {
				t.Errorf("expiryCutoff(%v) = %v, want %v", tt.ttl, got, tt.want)
			}
		})
	}
}
