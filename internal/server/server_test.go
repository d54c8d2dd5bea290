package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/oauth2"
)

type fakeAuthenticator struct {
	code string
	err  error
}

func (f *fakeAuthenticator) GetAuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, credentials map[string]string) error {
	f.code = credentials["auth_code"]
	return f.err
}

func (f *fakeAuthenticator) Token() (*oauth2.Token, error) {
	if f.code == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: "access-" + f.code, RefreshToken: "refresh"}, nil
}

func TestOAuthHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		authErr    error
		wantStatus int
		wantToken  string
		wantErr    bool
	}{
		{name: "success", query: "state=s1&code=abc", wantStatus: http.StatusOK, wantToken: "access-abc"},
		{name: "state mismatch", query: "state=other&code=abc", wantStatus: http.StatusBadRequest, wantErr: true},
		{name: "denied", query: "state=s1&error=access_denied", wantStatus: http.StatusBadRequest, wantErr: true},
		{name: "exchange failure", query: "state=s1&code=abc", authErr: errors.New("invalid_grant"), wantStatus: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOAuthHandler(&fakeAuthenticator{err: tc.authErr}, "s1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tc.query, nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			result, ok := <-h.Result()
			if !ok {
				t.Fatal("no result delivered")
			}
			if tc.wantErr {
				if result.Error() == nil {
					t.Error("expected an error result")
				}
				return
			}
			if result.Error() != nil {
				t.Fatalf("result error = %v", result.Error())
			}
			if result.Token.AccessToken != tc.wantToken {
				t.Errorf("token = %q, want %q", result.Token.AccessToken, tc.wantToken)
			}
		})
	}

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=a", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=b", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("AuthURL carries state", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		if !strings.HasSuffix(h.AuthURL(), "state=s1") {
			t.Errorf("AuthURL() = %q", h.AuthURL())
		}
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if a == b || len(a) < 32 {
		t.Errorf("states %q and %q are not random enough", a, b)
	}
}

func TestBasicRouter(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := NewBasicRouter()
	r.Use(mw("outer"), mw("inner"), RequestLogger(shared.DiscardLogger()))
	r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("applies middleware in order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d, want 418", rec.Code)
		}
		if strings.Join(order, ",") != "outer,inner" {
			t.Errorf("order = %v", order)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	t.Run("returns the delivered token", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		var opened string
		open := func(url string) error {
			opened = url
			h.Send(OAuthResult{Token: &oauth2.Token{AccessToken: "tok"}})
			return nil
		}

		token, err := NewCallbackServer("127.0.0.1:0", h, nil).Authorize(context.Background(), open)
		if err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if token.AccessToken != "tok" {
			t.Errorf("token = %q", token.AccessToken)
		}
		if !strings.Contains(opened, "state=s1") {
			t.Errorf("opened %q", opened)
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		srv := NewCallbackServer("127.0.0.1:0", h, nil).WithTimeout(20 * time.Millisecond)

		if _, err := srv.Authorize(context.Background(), nil); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("error = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewCallbackServer("127.0.0.1:0", h, nil).Authorize(ctx, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("failed result", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s1")
		h.Send(OAuthResult{err: shared.ErrAuthFailed})

		if _, err := NewCallbackServer("127.0.0.1:0", h, nil).Authorize(context.Background(), nil); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("error = %v, want ErrAuthFailed", err)
		}
	})
}
