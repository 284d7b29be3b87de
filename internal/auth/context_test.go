package auth

import (
	"context"
	"testing"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		authorization string
		expect        string
	}{
		{name: "query param", query: "abc", expect: "abc"},
		{name: "query wins over header", query: "abc", authorization: "Bearer xyz", expect: "abc"},
		{name: "bearer header", authorization: "Bearer xyz", expect: "xyz"},
		{name: "lowercase scheme", authorization: "bearer xyz", expect: "xyz"},
		{name: "basic auth ignored", authorization: "Basic dXNlcjpwYXNz", expect: ""},
		{name: "empty bearer", authorization: "Bearer ", expect: ""},
		{name: "nothing", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenFromRequest(tt.query, tt.authorization); got != tt.expect {
				t.Errorf("Expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestTokenContext(t *testing.T) {
	if got := TokenFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty token, got %q", got)
	}
	ctx := WithToken(context.Background(), " secret ")
	if got := TokenFromContext(ctx); got != "secret" {
		t.Errorf("Expected secret, got %q", got)
	}
}
