package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
)

// fakeBackend fakes the script management backend: the login/refresh
// identity endpoints plus a few authenticated resource endpoints.
type fakeBackend struct {
	srv *httptest.Server

	objects      sync.Map // access token -> struct{}
	tokenCounter uint64

	loginCount   uint64
	refreshCount uint64

	mu sync.Mutex
	// loginExpiresIn/refreshExpiresIn control the expires_at values
	// the fake hands out.
	loginExpiresIn   time.Duration
	refreshExpiresIn time.Duration
	// when true, the refresh response omits the refresh token.
	skipRotation bool
	// when non-zero, /refresh-token fails with this HTTP status.
	refreshFailStatus int
	// the refresh token most recently redeemed.
	lastRedeemedToken string
}

type fakeTokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at"`
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		loginExpiresIn:   10 * time.Minute,
		refreshExpiresIn: 10 * time.Minute,
	}
	router := httprouter.New()

	router.POST("/login", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		panicIf(json.NewDecoder(r.Body).Decode(&creds))
		if creds.Email == "" || creds.Password != "hunter2" {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		atomic.AddUint64(&b.loginCount, 1)

		b.mu.Lock()
		expiresIn := b.loginExpiresIn
		b.mu.Unlock()

		data := b.issueTokens(expiresIn, false)
		writeJSON(rw, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{
				"access_token":  data.AccessToken,
				"refresh_token": data.RefreshToken,
				"expires_at":    data.ExpiresAt,
				"user": map[string]interface{}{
					"id":           1,
					"name":         "Admin",
					"email":        creds.Email,
					"primary_role": "admin",
				},
			},
		})
	})

	router.POST("/refresh-token", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddUint64(&b.refreshCount, 1)

		var payload struct {
			RefreshToken string `json:"refresh_token"`
		}
		panicIf(json.NewDecoder(r.Body).Decode(&payload))

		b.mu.Lock()
		b.lastRedeemedToken = payload.RefreshToken
		failStatus := b.refreshFailStatus
		expiresIn := b.refreshExpiresIn
		skipRotation := b.skipRotation
		b.mu.Unlock()

		if failStatus != 0 {
			writeJSON(rw, failStatus, map[string]string{"message": "Unauthenticated"})
			return
		}

		data := b.issueTokens(expiresIn, skipRotation)
		writeJSON(rw, http.StatusOK, map[string]interface{}{"data": data})
	})

	router.POST("/logout", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(rw, http.StatusOK, map[string]string{"message": "Logged out"})
	}))

	router.GET("/my-scripts", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(rw, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": 1, "title": "Opening scene", "content": "FADE IN"},
				{"id": 2, "title": "Finale", "content": "FADE OUT"},
			},
		})
	}))

	router.POST("/scripts/generate", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var form ScriptForm
		panicIf(json.NewDecoder(r.Body).Decode(&form))
		writeJSON(rw, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"id": 3, "title": form.Title, "content": "INT. GENERATED"},
		})
	}))

	router.POST("/scripts/:id/improve", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(rw, http.StatusOK, map[string]interface{}{
			"success":         true,
			"modified_script": "INT. IMPROVED",
		})
	}))

	router.DELETE("/scripts/:id", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		rw.WriteHeader(http.StatusNoContent)
	}))

	router.GET("/scripts/:id/download-pdf", b.authenticated(func(rw http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rw.Header().Set("Content-Type", "application/pdf")
		fmt.Fprintf(rw, "%%PDF-1.4 script %s", ps.ByName("id"))
	}))

	router.GET("/users", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(rw, http.StatusOK, []map[string]interface{}{
			{"id": 1, "name": "Admin", "email": "admin@example.com", "status": "active"},
			{"id": 2, "name": "Writer", "email": "writer@example.com", "status": "archived"},
		})
	}))

	router.PATCH("/users/:id/status", b.authenticated(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var payload struct {
			Status string `json:"status"`
		}
		panicIf(json.NewDecoder(r.Body).Decode(&payload))
		writeJSON(rw, http.StatusOK, map[string]interface{}{"id": 2, "name": "Writer", "status": payload.Status})
	}))

	b.srv = httptest.NewServer(router)
	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }

func (b *fakeBackend) Close() { b.srv.Close() }

func (b *fakeBackend) LoginCount() uint64 { return atomic.LoadUint64(&b.loginCount) }

func (b *fakeBackend) RefreshCount() uint64 { return atomic.LoadUint64(&b.refreshCount) }

func (b *fakeBackend) LastRedeemedToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRedeemedToken
}

func (b *fakeBackend) SetLoginExpiresIn(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginExpiresIn = d
}

func (b *fakeBackend) SetRefreshExpiresIn(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshExpiresIn = d
}

func (b *fakeBackend) SetSkipRotation(skip bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skipRotation = skip
}

func (b *fakeBackend) FailRefresh(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshFailStatus = status
}

func (b *fakeBackend) issueTokens(expiresIn time.Duration, skipRotation bool) fakeTokenData {
	n := atomic.AddUint64(&b.tokenCounter, 1)
	data := fakeTokenData{
		AccessToken: fmt.Sprintf("access-token-%d", n),
		ExpiresAt:   time.Now().UTC().Add(expiresIn).Format("2006-01-02 15:04:05"),
	}
	if !skipRotation {
		data.RefreshToken = fmt.Sprintf("refresh-token-%d", n)
	}
	b.objects.Store(data.AccessToken, struct{}{})
	return data
}

func (b *fakeBackend) authenticated(handle httprouter.Handle) httprouter.Handle {
	return func(rw http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, ok := b.objects.Load(token); !ok {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated"})
			return
		}
		handle(rw, r, ps)
	}
}

func writeJSON(rw http.ResponseWriter, status int, body interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	panicIf(json.NewEncoder(rw).Encode(body))
}

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}
