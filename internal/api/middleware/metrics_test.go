package middleware

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/health/live", want: "/health/live"},
		{path: "/metrics", want: "/metrics"},
		{path: "/api/integrations/sources", want: "/api/integrations/sources"},
		{path: "/api/integrations/connectors", want: "/api/integrations/connectors"},
		{path: "/api/integrations/sources/src-1/sync", want: "/api/integrations/sources/{id}/sync"},
		{path: "/api/integrations/sources/mock-source-4f1c/sync", want: "/api/integrations/sources/{id}/sync"},
		{path: "/api/integrations/sources//sync", want: "other"},
		{path: "/api/integrations/sources/a/b/sync", want: "other"},
		{path: "/random/path", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
			}
		})
	}
}
