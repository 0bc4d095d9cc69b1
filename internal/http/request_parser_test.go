package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func parserFor(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("parse %q: %v", body, err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantJSON bool
		want     map[string]string
	}{
		{
			name:     "json object",
			body:     `{"description":" Coffee ","amount":4.5,"category":"Food","flag":true}`,
			wantJSON: true,
			want:     map[string]string{"description": "Coffee", "amount": "4.5", "category": "Food", "flag": "true", "missing": ""},
		},
		{
			name: "form encoded",
			body: "description=Rent&amount=1800&type=expense",
			want: map[string]string{"description": "Rent", "amount": "1800", "type": "expense"},
		},
		{
			name: "control characters stripped",
			body: "description=Ca%00fe%07",
			want: map[string]string{"description": "Cafe"},
		},
		{
			name: "empty body",
			body: "",
			want: map[string]string{"description": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parserFor(t, tt.body)
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			for k, v := range tt.want {
				if got := p.Get(k); got != v {
					t.Errorf("Get(%q) = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestRequestBodyParserInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"description":`))
	if err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequestBodyParserTooLarge(t *testing.T) {
	body := "description=" + strings.Repeat("x", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestFormInputDefaultsType(t *testing.T) {
	in := parserFor(t, "description=Coffee&amount=4").FormInput()
	if in.Type != "expense" || in.Description != "Coffee" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestBool(t *testing.T) {
	p := parserFor(t, "necessary=false&weird=maybe")
	if v, err := p.Bool("necessary"); err != nil || v {
		t.Fatalf("necessary: %v %v", v, err)
	}
	if _, err := p.Bool("weird"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := p.Bool("absent"); err == nil {
		t.Fatal("expected missing error")
	}
	if !p.Has("weird") || p.Has("absent") {
		t.Fatal("Has mismatch")
	}
}
