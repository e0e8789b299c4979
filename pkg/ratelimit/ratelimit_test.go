package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	now := time.Now()

	// First 3 requests fit in the window
	for i := 0; i < 3; i++ {
		if !limiter.allowAt("key", now) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 4th request is denied
	if limiter.allowAt("key", now) {
		t.Error("4th request should be denied")
	}

	// A different key has its own window
	if !limiter.allowAt("other", now) {
		t.Error("Different key should be allowed")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter := NewLimiter(2, time.Minute)
	now := time.Now()

	if !limiter.allowAt("key", now) || !limiter.allowAt("key", now) {
		t.Fatal("First two requests should be allowed")
	}
	if limiter.allowAt("key", now.Add(30*time.Second)) {
		t.Error("Request inside the window should be denied")
	}

	// After the window passes, requests are allowed again
	if !limiter.allowAt("key", now.Add(61*time.Second)) {
		t.Error("Request after the window should be allowed")
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	now := time.Now()

	if !limiter.allowAt("key", now) {
		t.Fatal("First request should be allowed")
	}
	if limiter.allowAt("key", now) {
		t.Fatal("Second request should be denied")
	}

	limiter.Reset("key")

	if !limiter.allowAt("key", now) {
		t.Error("Request after reset should be allowed")
	}
}
