package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/micro-nova/campower/internal/auth"
)

// writeKeysJSON writes keys.json to dir.
func writeKeysJSON(t *testing.T, dir string, keys map[string]auth.Key) {
	t.Helper()
	data, err := json.Marshal(keys)
	if err != nil {
		t.Fatalf("json.Marshal keys: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keys.json"), data, 0644); err != nil {
		t.Fatalf("WriteFile keys.json: %v", err)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- Open mode (no keys.json) ---

func TestService_OpenMode_IsOpenMode(t *testing.T) {
	svc, err := auth.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	if !svc.IsOpenMode() {
		t.Error("IsOpenMode() = false, want true when no keys.json")
	}
	if svc.VerifyKey("") {
		t.Error("VerifyKey(\"\") = true, want false")
	}
}

func TestMiddleware_OpenMode_PassesThrough(t *testing.T) {
	svc, err := auth.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sensors", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 in open mode", rec.Code)
	}
}

func TestService_EmptyDir_OpenMode(t *testing.T) {
	svc, err := auth.NewService("")
	if err != nil {
		t.Fatalf("NewService(\"\"): %v", err)
	}
	defer svc.Close()
	if !svc.IsOpenMode() {
		t.Error("IsOpenMode() = false, want true")
	}
}

// --- Secured mode ---

func newSecuredService(t *testing.T, accessKey string) *auth.Service {
	t.Helper()
	dir := t.TempDir()
	writeKeysJSON(t, dir, map[string]auth.Key{"bench": {AccessKey: accessKey}})
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestService_SecuredMode_VerifyKey(t *testing.T) {
	svc := newSecuredService(t, "secret-key")

	if svc.IsOpenMode() {
		t.Error("IsOpenMode() = true, want false with a key configured")
	}
	if !svc.VerifyKey("secret-key") {
		t.Error("VerifyKey(correct) = false, want true")
	}
	if svc.VerifyKey("wrong") {
		t.Error("VerifyKey(wrong) = true, want false")
	}
	if svc.VerifyKey("") {
		t.Error("VerifyKey(empty) = true, want false")
	}
}

func TestMiddleware_SecuredMode_Header_Passes(t *testing.T) {
	svc := newSecuredService(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/api/sensors", nil)
	req.Header.Set("X-Api-Key", "secret-key")
	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_SecuredMode_QueryParam_Passes(t *testing.T) {
	svc := newSecuredService(t, "secret-key")

	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sensors?api-key=secret-key", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_SecuredMode_WrongKey_Unauthorized(t *testing.T) {
	svc := newSecuredService(t, "secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/sensors/ov9724/power", nil)
	req.Header.Set("X-Api-Key", "nope")
	rec := httptest.NewRecorder()
	svc.Middleware(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestService_Reload(t *testing.T) {
	dir := t.TempDir()
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	writeKeysJSON(t, dir, map[string]auth.Key{"ops": {AccessKey: "k1"}})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !svc.VerifyKey("k1") {
		t.Error("VerifyKey(k1) = false after Reload, want true")
	}
}

func TestService_WatchPicksUpNewKeys(t *testing.T) {
	dir := t.TempDir()
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	writeKeysJSON(t, dir, map[string]auth.Key{"ops": {AccessKey: "watched"}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.VerifyKey("watched") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watcher did not reload keys.json within 2s")
}
