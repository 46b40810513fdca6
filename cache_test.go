package main

import (
	"testing"
	"time"
)

// TestContentCache tests basic cache operations
func TestContentCache(t *testing.T) {
	cache := NewContentCache(5 * time.Minute)

	t.Run("miss on empty cache", func(t *testing.T) {
		if _, ok := cache.Get("https://example.com"); ok {
			t.Error("Expected cache miss")
		}
	})

	t.Run("set then get", func(t *testing.T) {
		cache.Set("https://example.com", "page content")

		content, ok := cache.Get("https://example.com")
		if !ok {
			t.Fatal("Expected cache hit")
		}
		if content != "page content" {
			t.Errorf("Content = %q, want 'page content'", content)
		}
	})

	t.Run("entries are independent per URL", func(t *testing.T) {
		cache.Set("https://other.example.com", "other content")

		content, ok := cache.Get("https://example.com")
		if !ok || content != "page content" {
			t.Errorf("First entry disturbed: %q, %v", content, ok)
		}
		if _, ok := cache.Get("https://unknown.example.com"); ok {
			t.Error("Expected miss for unknown URL")
		}
	})

	t.Run("clear empties the cache", func(t *testing.T) {
		cache.Clear()
		if cache.Size() != 0 {
			t.Errorf("Size = %d after Clear, want 0", cache.Size())
		}
		if _, ok := cache.Get("https://example.com"); ok {
			t.Error("Expected miss after Clear")
		}
	})
}

// TestContentCacheExpiry tests TTL expiration
func TestContentCacheExpiry(t *testing.T) {
	cache := NewContentCache(10 * time.Millisecond)

	cache.Set("https://example.com", "content")
	if _, ok := cache.Get("https://example.com"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get("https://example.com"); ok {
		t.Error("Expected miss after TTL expiry")
	}

	// The expired entry still counts until overwritten or cleared
	if cache.Size() != 1 {
		t.Errorf("Size = %d, want 1", cache.Size())
	}
}
