package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liiist/liiist/internal/credential"
	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/repository"
)

var testSecret = []byte("session-secret-session-secret-xx")

type fixture struct {
	store   *Store
	backend *MemoryBackend
	repo    *repository.Memory
	creds   *credential.Service
}

func newFixture(t *testing.T, refresh bool) *fixture {
	t.Helper()
	repo := repository.NewMemory()
	creds, err := credential.NewService(repo, repo, credential.Config{
		Secret:     []byte("jwt-secret-jwt-secret-jwt-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Hash:       credential.HashParams{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8},
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := creds.Register(context.Background(), credential.RegisterParams{
		Email:       "ada@example.com",
		Password:    "correct-horse",
		Name:        "Ada",
		DateOfBirth: "1990-05-17",
		Retailers:   []string{"Tesco"},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	opts := Options{Secret: testSecret}
	if refresh {
		opts.Refresher = creds
	}
	backend := NewMemoryBackend()
	store, err := NewStore(backend, repo, opts, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return &fixture{store: store, backend: backend, repo: repo, creds: creds}
}

func (f *fixture) login(t *testing.T) *model.Session {
	t.Helper()
	sess, err := f.creds.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return sess
}

// signIn sets a session and returns the cookie a browser would send back.
func (f *fixture) signIn(t *testing.T, sess *model.Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	slot := f.store.Slot(rec, httptest.NewRequest(http.MethodPost, "/sign-in", nil))
	if err := slot.Set(context.Background(), sess.User, sess.Tokens); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Set wrote %d cookies, want 1", len(cookies))
	}
	return cookies[0]
}

func (f *fixture) slotWith(c *http.Cookie) (*Slot, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	return f.store.Slot(rec, req), rec
}

func TestNewStore_RequiresSecret(t *testing.T) {
	if _, err := NewStore(NewMemoryBackend(), repository.NewMemory(), Options{}, nil); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("err = %v, want ErrMissingSecret", err)
	}
}

func TestSlot_GetWithoutCookie(t *testing.T) {
	f := newFixture(t, false)
	slot, _ := f.slotWith(nil)

	got, err := slot.Get(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", got, err)
	}
}

func TestSlot_SetThenGetAcrossRequests(t *testing.T) {
	f := newFixture(t, false)
	sess := f.login(t)
	c := f.signIn(t, sess)

	if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("cookie attributes = %+v", c)
	}
	if c.MaxAge <= 0 || c.MaxAge > int(time.Hour.Seconds()) {
		t.Errorf("MaxAge = %d, want within refresh lifetime", c.MaxAge)
	}
	if strings.Contains(c.Value, sess.Tokens.AccessToken) {
		t.Error("cookie must not carry the tokens")
	}

	slot, _ := f.slotWith(c)
	got, err := slot.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil session")
	}
	if got.User.ID != sess.User.ID || got.Tokens.AccessToken != sess.Tokens.AccessToken {
		t.Errorf("Get = %+v, want tokens of the latest sign-in", got)
	}
}

func TestSlot_SecondSignInReplacesFirst(t *testing.T) {
	f := newFixture(t, false)
	first := f.login(t)
	second := f.login(t)

	if first.Tokens.AccessToken == second.Tokens.AccessToken {
		t.Fatal("logins should mint distinct access tokens")
	}

	rec := httptest.NewRecorder()
	slot := f.store.Slot(rec, httptest.NewRequest(http.MethodPost, "/sign-in", nil))
	ctx := context.Background()
	if err := slot.Set(ctx, first.User, first.Tokens); err != nil {
		t.Fatalf("Set first: %v", err)
	}
	if err := slot.Set(ctx, second.User, second.Tokens); err != nil {
		t.Fatalf("Set second: %v", err)
	}

	got, err := slot.Get(ctx)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Tokens.AccessToken != second.Tokens.AccessToken {
		t.Error("Get should reflect the latest pair")
	}
	if f.backend.Len() != 1 {
		t.Errorf("backend holds %d records, want 1", f.backend.Len())
	}
}

func TestSlot_ClearThenGet(t *testing.T) {
	f := newFixture(t, false)
	c := f.signIn(t, f.login(t))
	ctx := context.Background()

	slot, rec := f.slotWith(c)
	if err := slot.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, err := slot.Get(ctx); got != nil || err != nil {
		t.Fatalf("Get after Clear = %v, %v; want nil, nil", got, err)
	}

	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("Clear should expire the cookie, got %+v", cleared)
	}

	// The old cookie no longer resolves either.
	again, _ := f.slotWith(c)
	if got, _ := again.Get(ctx); got != nil {
		t.Error("stale cookie should not resolve after Clear")
	}
	if err := again.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSlot_ClearWithoutSession(t *testing.T) {
	f := newFixture(t, false)
	slot, rec := f.slotWith(nil)

	if err := slot.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("Clear on an empty slot should not write cookies")
	}
}

func TestSlot_TamperedCookie(t *testing.T) {
	f := newFixture(t, false)
	c := f.signIn(t, f.login(t))

	tests := []string{
		c.Value + "x",
		"01HZX0000000000000000000S1." + strings.SplitN(c.Value, ".", 2)[1],
		"no-signature",
		"",
	}
	for _, value := range tests {
		slot, _ := f.slotWith(&http.Cookie{Name: DefaultCookieName, Value: value})
		got, err := slot.Get(context.Background())
		if err != nil || got != nil {
			t.Errorf("Get(%q) = %v, %v; want nil, nil", value, got, err)
		}
	}
}

func TestSlot_CorruptRecord(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := "01HZX0000000000000000000S2"
	_ = f.backend.SaveSession(ctx, id, []byte("{not json"), time.Hour)

	slot, _ := f.slotWith(&http.Cookie{Name: DefaultCookieName, Value: signID(testSecret, id)})
	got, err := slot.Get(ctx)
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", got, err)
	}
	if f.backend.Len() != 0 {
		t.Error("corrupt record should be discarded")
	}
}

func TestSlot_UserDeleted(t *testing.T) {
	f := newFixture(t, false)
	sess := f.login(t)
	c := f.signIn(t, sess)

	if err := f.repo.DeleteUser(context.Background(), sess.User.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	slot, _ := f.slotWith(c)
	got, err := slot.Get(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", got, err)
	}
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) LoadSession(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestSlot_BackendFailureIsAnError(t *testing.T) {
	f := newFixture(t, false)
	c := f.signIn(t, f.login(t))

	store, err := NewStore(failingBackend{f.backend}, f.repo, Options{Secret: testSecret}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	if _, err := store.Slot(httptest.NewRecorder(), req).Get(context.Background()); err == nil {
		t.Fatal("backend failure should surface as an error")
	}
}

func TestSlot_RefreshesExpiredAccessToken(t *testing.T) {
	f := newFixture(t, true)
	sess := f.login(t)
	c := f.signIn(t, sess)

	f.store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	slot, _ := f.slotWith(c)
	got, err := slot.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("session should survive an expired access token")
	}
	if got.Tokens.RefreshToken == sess.Tokens.RefreshToken {
		t.Error("refresh should rotate the pair")
	}

	// The rotated pair was written back under the same cookie.
	f.store.now = time.Now
	again, _ := f.slotWith(c)
	stored, err := again.Get(context.Background())
	if err != nil || stored == nil {
		t.Fatalf("second Get = %v, %v", stored, err)
	}
	if stored.Tokens.RefreshToken != got.Tokens.RefreshToken {
		t.Error("rotated pair should be persisted")
	}
}

func TestSlot_RefreshRejected(t *testing.T) {
	f := newFixture(t, true)
	sess := f.login(t)
	c := f.signIn(t, sess)

	// Revoked elsewhere, e.g. by a sign-out on another device.
	if err := f.creds.Revoke(context.Background(), sess.Tokens.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	f.store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	slot, _ := f.slotWith(c)
	got, err := slot.Get(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", got, err)
	}
}

// staleBackend serves a saved copy of a record once, as a request that read
// the record before a parallel request rotated it would see it.
type staleBackend struct {
	*MemoryBackend
	stale []byte
}

func (b *staleBackend) LoadSession(ctx context.Context, id string) ([]byte, error) {
	if b.stale != nil {
		data := b.stale
		b.stale = nil
		return data, nil
	}
	return b.MemoryBackend.LoadSession(ctx, id)
}

func TestSlot_ParallelRefreshKeepsRotatedSession(t *testing.T) {
	f := newFixture(t, true)
	sess := f.login(t)
	c := f.signIn(t, sess)

	id := verifyCookie(testSecret, c.Value)
	snapshot, err := f.backend.LoadSession(context.Background(), id)
	if err != nil || snapshot == nil {
		t.Fatalf("LoadSession = %v, %v", snapshot, err)
	}

	later := func() time.Time { return time.Now().Add(2 * time.Minute) }
	f.store.now = later

	first, _ := f.slotWith(c)
	rotated, err := first.Get(context.Background())
	if err != nil || rotated == nil {
		t.Fatalf("first Get = %v, %v", rotated, err)
	}

	racing, err := NewStore(&staleBackend{MemoryBackend: f.backend, stale: snapshot}, f.repo, Options{
		Secret:    testSecret,
		Refresher: f.creds,
	}, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	racing.now = later

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, err := racing.Slot(httptest.NewRecorder(), req).Get(context.Background())
	if err != nil {
		t.Fatalf("racing Get: %v", err)
	}
	if got == nil {
		t.Fatal("losing the refresh race must not sign the user out")
	}
	if got.Tokens.RefreshToken != rotated.Tokens.RefreshToken {
		t.Error("racing request should see the pair rotated by the first request")
	}
	if got.User.ID != sess.User.ID {
		t.Errorf("user = %s, want %s", got.User.ID, sess.User.ID)
	}

	f.store.now = time.Now
	next, _ := f.slotWith(c)
	stored, err := next.Get(context.Background())
	if err != nil || stored == nil {
		t.Fatalf("next Get = %v, %v", stored, err)
	}
	if f.backend.Len() != 1 {
		t.Errorf("backend records = %d, want 1", f.backend.Len())
	}
}

func TestSlot_SetRejectsExpiredPair(t *testing.T) {
	f := newFixture(t, false)
	sess := f.login(t)
	sess.Tokens.RefreshExpiresAt = time.Now().Add(-time.Second)

	slot, _ := f.slotWith(nil)
	if err := slot.Set(context.Background(), sess.User, sess.Tokens); !errors.Is(err, ErrTokensExpired) {
		t.Fatalf("Set err = %v, want ErrTokensExpired", err)
	}
}

func TestMiddleware_AttachesSlot(t *testing.T) {
	f := newFixture(t, false)
	var found bool
	h := f.store.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !found {
		t.Error("Middleware should attach a slot to the request context")
	}
}

func TestVerifyCookie(t *testing.T) {
	t.Parallel()

	value := signID(testSecret, "abc")
	if got := verifyCookie(testSecret, value); got != "abc" {
		t.Errorf("verifyCookie = %q, want abc", got)
	}
	if got := verifyCookie([]byte("other-secret"), value); got != "" {
		t.Errorf("verifyCookie with wrong secret = %q, want empty", got)
	}
}
