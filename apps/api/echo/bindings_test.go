package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mafunzo/core"
)

func TestOrderingBind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "no param", query: ""},
		{name: "single field", query: "ordering=received_at", want: []core.DBOrdering{{Field: "received_at", Ascending: true}}},
		{
			name:  "descending and multiple",
			query: "ordering=-received_at,created_at",
			want: []core.DBOrdering{
				{Field: "received_at", Ascending: false},
				{Field: "created_at", Ascending: true},
			},
		},
		{name: "subquery dropped", query: "ordering=(SELECT+password+FROM+app_user+LIMIT+1)"},
		{
			name:  "only plain columns survive",
			query: "ordering=amount,1%3B+DROP+TABLE+payment%3B--",
			want:  []core.DBOrdering{{Field: "amount", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())

			var ord Ordering
			ord.Bind(ctx)

			if len(ord.Orderings) != len(tt.want) {
				t.Fatalf("Orderings = %+v, want %+v", ord.Orderings, tt.want)
			}
			for i, want := range tt.want {
				if ord.Orderings[i] != want {
					t.Errorf("Orderings[%d] = %+v, want %+v", i, ord.Orderings[i], want)
				}
			}
		})
	}
}
