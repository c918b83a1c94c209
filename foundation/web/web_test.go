package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type echo struct {
	Name string `json:"name"`
}

func (e echo) Validate() error {
	if e.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestHandle(t *testing.T) {
	t.Log("Given the need to route requests through middleware.")
	{
		var order []string
		mark := func(name string) web.Middleware {
			return func(handler web.Handler) web.Handler {
				return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
					order = append(order, name)
					return handler(ctx, w, r)
				}
			}
		}

		app := web.NewApp(make(chan os.Signal, 1), mark("app"))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var e echo
			if err := web.Decode(r, &e); err != nil {
				return web.Respond(ctx, w, err.Error(), http.StatusBadRequest)
			}

			v, err := web.GetValues(ctx)
			if err != nil {
				return err
			}
			if v.TraceID == "" {
				return errors.New("missing trace id")
			}

			return web.Respond(ctx, w, map[string]string{"name": e.Name, "id": web.Param(r, "id")}, http.StatusOK)
		}
		app.Handle(http.MethodPost, "v1", "/echo/:id", h, mark("route"))

		testID := 0
		t.Logf("\tTest %d:\tWhen posting a valid document.", testID)
		{
			r := httptest.NewRequest(http.MethodPost, "/v1/echo/42", strings.NewReader(`{"name":"bill"}`))
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 200: %d", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 200.", success, testID)

			var got map[string]string
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould decode the response: %v", failed, testID, err)
			}
			if got["name"] != "bill" || got["id"] != "42" {
				t.Fatalf("\t%s\tTest %d:\tShould echo the name and param: %v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould echo the name and param.", success, testID)

			if len(order) != 2 || order[0] != "app" || order[1] != "route" {
				t.Fatalf("\t%s\tTest %d:\tShould run app middleware first: %v", failed, testID, order)
			}
			t.Logf("\t%s\tTest %d:\tShould run app middleware first.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen posting a document that fails validation.", testID)
		{
			r := httptest.NewRequest(http.MethodPost, "/v1/echo/1", strings.NewReader(`{"name":""}`))
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 400: %d", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 400.", success, testID)
		}
	}
}

func TestShutdown(t *testing.T) {
	t.Log("Given the need to shutdown on integrity errors.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a handler returns a shutdown error.", testID)
		{
			shutdown := make(chan os.Signal, 1)
			app := web.NewApp(shutdown)

			h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.NewShutdownError("integrity")
			}
			app.Handle(http.MethodGet, "", "/fail", h)

			app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

			select {
			case <-shutdown:
				t.Logf("\t%s\tTest %d:\tShould signal shutdown.", success, testID)
			default:
				t.Fatalf("\t%s\tTest %d:\tShould signal shutdown.", failed, testID)
			}
		}
	}
}
