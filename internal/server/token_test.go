package server

import (
	"testing"
	"time"
)

func TestDownloadTokens(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tokens := newDownloadTokens("secret", time.Hour)
	tokens.now = func() time.Time { return now }

	token, err := tokens.issue("My_App_1.0.0.apk")
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}

	t.Run("accepts a token for its name", func(t *testing.T) {
		if err := tokens.verify(token, "My_App_1.0.0.apk"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
	})

	t.Run("rejects a token for another name", func(t *testing.T) {
		if err := tokens.verify(token, "Other_1.0.0.apk"); err == nil {
			t.Fatal("got nil, want an error")
		}
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired := *tokens
		expired.now = func() time.Time { return now.Add(2 * time.Hour) }
		if err := expired.verify(token, "My_App_1.0.0.apk"); err == nil {
			t.Fatal("got nil, want an error")
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := newDownloadTokens("other secret", time.Hour)
		other.now = tokens.now
		if err := other.verify(token, "My_App_1.0.0.apk"); err == nil {
			t.Fatal("got nil, want an error")
		}
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		if err := tokens.verify("", "My_App_1.0.0.apk"); err == nil {
			t.Fatal("got nil, want an error")
		}
	})
}
