package filter

import (
	"testing"

	"ckandump/internal/model"
)

func TestFilter_Downloadable(t *testing.T) {
	f := New(nil)

	tests := []struct {
		name string
		res  model.Resource
		want bool
	}{
		{
			name: "csv",
			res:  model.Resource{MimeType: "text/csv", URL: "http://x/y.csv"},
			want: true,
		},
		{
			name: "json uppercase",
			res:  model.Resource{MimeType: "APPLICATION/JSON", URL: "http://x/y.json"},
			want: true,
		},
		{
			name: "json without url",
			res:  model.Resource{MimeType: "application/json", URL: ""},
			want: false,
		},
		{
			name: "pdf",
			res:  model.Resource{MimeType: "application/pdf", URL: "http://x/y.pdf"},
			want: false,
		},
		{
			name: "empty mimetype",
			res:  model.Resource{MimeType: "", URL: "http://x/y"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Downloadable(tt.res); got != tt.want {
				t.Errorf("Downloadable(%+v) = %v, want %v", tt.res, got, tt.want)
			}
		})
	}
}

func TestFilter_CustomAllowSet(t *testing.T) {
	f := New([]string{"application/pdf"})

	if !f.Downloadable(model.Resource{MimeType: "application/PDF", URL: "http://x/y.pdf"}) {
		t.Error("custom type should be downloadable")
	}
	if f.Downloadable(model.Resource{MimeType: "text/csv", URL: "http://x/y.csv"}) {
		t.Error("default types should not apply with a custom set")
	}
}

func TestFilter_Apply(t *testing.T) {
	f := New(nil)
	resources := []model.Resource{
		{MimeType: "text/csv", URL: "http://x/a.csv"},
		{MimeType: "application/pdf", URL: "http://x/b.pdf"},
		{MimeType: "application/json", URL: "http://x/c.json"},
		{MimeType: "text/csv", URL: ""},
	}

	got := f.Apply(resources)
	if len(got) != 2 {
		t.Fatalf("Apply = %d resources, want 2", len(got))
	}
	if got[0].URL != "http://x/a.csv" || got[1].URL != "http://x/c.json" {
		t.Errorf("Apply order not preserved: %v", got)
	}
}
