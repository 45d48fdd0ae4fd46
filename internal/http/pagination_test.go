package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query    string
		wantNum  int
		wantSize int
		wantErr  bool
	}{
		{"", 1, 6, false},
		{"page=3&limit=10", 3, 10, false},
		{"limit=1000", 1, 100, false},
		{"limit=abc", 1, 6, false},
		{"limit=0", 1, 6, false},
		{"page=0", 0, 0, true},
		{"page=x", 0, 0, true},
		{"page=9223372036854775807&limit=100", 0, 0, true},
		{"page=99999999999999999999", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/recipes/?"+tt.query, nil)
			p, err := parsePage(r, 6)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Number != tt.wantNum || p.Size != tt.wantSize {
				t.Errorf("parsePage = %+v, want page %d size %d", p, tt.wantNum, tt.wantSize)
			}
		})
	}
}

func TestPaginateLinks(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/users/?page=2&limit=1", nil)
	out, err := paginate(r, "http://x", pageParams{Number: 2, Size: 1}, 3, []int{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Next == nil || *out.Next != "http://x/api/users/?limit=1&page=3" {
		t.Errorf("next = %v", out.Next)
	}
	if out.Previous == nil || *out.Previous != "http://x/api/users/?limit=1" {
		t.Errorf("previous = %v", out.Previous)
	}

	if _, err := paginate(r, "http://x", pageParams{Number: 4, Size: 1}, 3, nil); err != errInvalidPage {
		t.Errorf("expected errInvalidPage, got %v", err)
	}
	if _, err := paginate(r, "http://x", pageParams{Number: 1, Size: 1}, 0, nil); err != nil {
		t.Errorf("empty first page should be valid, got %v", err)
	}
}
