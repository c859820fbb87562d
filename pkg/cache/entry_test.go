package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "just expired",
			expires: time.Now().Add(-1 * time.Second),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	expired := &CacheEntry{Expires: time.Now().Add(-time.Minute)}
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", got)
	}

	fresh := &CacheEntry{Expires: time.Now().Add(time.Minute)}
	if got := fresh.TTL(); got <= 0 || got > time.Minute {
		t.Errorf("TTL() = %v, want (0, 1m]", got)
	}
}

func TestNewEntry(t *testing.T) {
	entry := NewEntry("quotec", []byte(`{"data":[]}`), 30*time.Second)

	if entry.Operation != "quotec" {
		t.Errorf("Operation = %q, want quotec", entry.Operation)
	}
	if got := entry.Expires.Sub(entry.CachedAt); got != 30*time.Second {
		t.Errorf("Expires - CachedAt = %v, want 30s", got)
	}
	if entry.IsExpired() {
		t.Error("new entry should not be expired")
	}
}
