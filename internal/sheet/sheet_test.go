package sheet

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, key *rsa.PrivateKey, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))

		parsed, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "svc@example.iam.gserviceaccount.com", claims["iss"])
		assert.Contains(t, claims["scope"], "https://www.googleapis.com/auth/spreadsheets")
		assert.Equal(t, "kid-1", parsed.Header["kid"])

		// 第一个 token 的有效期短于 oauth2 的提前刷新窗口，下一次取用即需刷新。
		expiresIn := 3600
		if n == 1 {
			expiresIn = 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"ya29.%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func credentialsFor(t *testing.T, key *rsa.PrivateKey, tokenURI string) []byte {
	t.Helper()
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "svc@example.iam.gserviceaccount.com",
		"client_id":      "1234",
		"private_key":    string(pemKey),
		"private_key_id": "kid-1",
		"token_uri":      tokenURI,
	})
	require.NoError(t, err)
	return raw
}

func TestServiceAccountTokenRefreshesAfterExpiry(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var calls int32
	srv := newTokenServer(t, key, &calls)

	ts, err := NewServiceAccountTokenSource(ServiceAccountConfig{Credentials: credentialsFor(t, key, srv.URL)})
	require.NoError(t, err)

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.1", tok)

	for i := 0; i < 3; i++ {
		tok, err = ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ya29.2", tok)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	full, err := ts.OAuth2().Token()
	require.NoError(t, err)
	assert.False(t, full.Expiry.IsZero())
}

func TestServiceAccountTokenErrors(t *testing.T) {
	_, err := NewServiceAccountTokenSource(ServiceAccountConfig{})
	assert.Error(t, err)

	_, err = NewServiceAccountTokenSource(ServiceAccountConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = NewServiceAccountTokenSource(ServiceAccountConfig{Credentials: []byte(`not json`)})
	assert.Error(t, err)

	bad, err := NewServiceAccountTokenSource(ServiceAccountConfig{Credentials: []byte(
		`{"type":"service_account","client_email":"a","private_key":"nope","token_uri":"http://127.0.0.1:1/token"}`)})
	if err == nil {
		_, err = bad.Token(context.Background())
	}
	assert.Error(t, err)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()
	ts, err := NewServiceAccountTokenSource(ServiceAccountConfig{Credentials: credentialsFor(t, key, srv.URL)})
	require.NoError(t, err)
	_, err = ts.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestOAuth2Adapter(t *testing.T) {
	tok, err := OAuth2(context.Background(), &StaticTokenSource{Value: "abc"}).Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.False(t, tok.Expiry.IsZero())

	_, err = OAuth2(context.Background(), &StaticTokenSource{}).Token()
	assert.Error(t, err)
}

// rotatingSource 模拟自行缓存、按需换新的 token 提供方。
type rotatingSource struct {
	mu      sync.Mutex
	version int
	calls   int
}

func (r *rotatingSource) Token(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return fmt.Sprintf("tok-%d", r.version), nil
}

func (r *rotatingSource) rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
}

func TestClientPicksUpRotatedToken(t *testing.T) {
	stub := &googleStub{}
	srv := newGoogleStub(t, stub)
	ctx := context.Background()

	src := &rotatingSource{version: 1}
	c, err := NewClient(ctx, Config{Endpoint: srv.URL, TokenSource: src})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = c.Values(ctx, "sheet-1", "A2:I")
		require.NoError(t, err)
	}
	src.rotate()
	_, err = c.Values(ctx, "sheet-1", "A2:I")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-1", "Bearer tok-1", "Bearer tok-2"}, stub.authHeaders())
}

func TestClientRefreshesServiceAccountToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var calls int32
	tokenSrv := newTokenServer(t, key, &calls)
	ts, err := NewServiceAccountTokenSource(ServiceAccountConfig{Credentials: credentialsFor(t, key, tokenSrv.URL)})
	require.NoError(t, err)

	stub := &googleStub{}
	srv := newGoogleStub(t, stub)
	ctx := context.Background()
	c, err := NewClient(ctx, Config{Endpoint: srv.URL, TokenSource: ts})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = c.Values(ctx, "sheet-1", "A2:I")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Bearer ya29.1", "Bearer ya29.2", "Bearer ya29.2"}, stub.authHeaders())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type googleStub struct {
	appendQuery string
	appendBody  string
	driveQuery  string
	cleared     bool

	mu   sync.Mutex
	auth []string
}

func (s *googleStub) authHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

func newGoogleStub(t *testing.T, stub *googleStub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.auth = append(stub.auth, r.Header.Get("Authorization"))
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/files"):
			stub.driveQuery = r.URL.Query().Get("q")
			_, _ = io.WriteString(w, `{"files":[{"id":"sheet-1","name":"Menu"}]}`)
		case strings.HasSuffix(r.URL.Path, ":append"):
			stub.appendQuery = r.URL.Query().Get("valueInputOption")
			body, _ := io.ReadAll(r.Body)
			stub.appendBody = string(body)
			_, _ = io.WriteString(w, `{}`)
		case strings.HasSuffix(r.URL.Path, ":clear"):
			stub.cleared = true
			_, _ = io.WriteString(w, `{}`)
		case strings.Contains(r.URL.Path, "/values/"):
			_, _ = io.WriteString(w, `{"range":"A2:I","values":[["1","10",100,"Brand"],["2","20"]]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientValuesAppendClearFind(t *testing.T) {
	stub := &googleStub{}
	srv := newGoogleStub(t, stub)
	ctx := context.Background()

	c, err := NewClient(ctx, Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	rows, err := c.Values(ctx, "sheet-1", "MİGROS!A2:I")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "10", "100", "Brand"}, {"2", "20"}}, rows)

	require.NoError(t, c.Append(ctx, "sheet-1", "Report!A1", [][]string{{"run", "ok"}}))
	assert.Equal(t, "USER_ENTERED", stub.appendQuery)
	assert.Contains(t, stub.appendBody, `["run","ok"]`)

	require.NoError(t, c.Clear(ctx, "sheet-1", "Report!A2:Z"))
	assert.True(t, stub.cleared)

	id, err := c.FindSpreadsheet(ctx, "Menu", "folder-9")
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)
	assert.Contains(t, stub.driveQuery, "name='Menu'")
	assert.Contains(t, stub.driveQuery, "'folder-9' in parents")
}

func TestNewClientRequiresAuth(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStaticReaderCopiesRows(t *testing.T) {
	r := &StaticReader{Rows: [][]string{{"a"}}}
	rows, err := r.Values(context.Background(), "", "")
	require.NoError(t, err)
	rows[0][0] = "mutated"
	again, _ := r.Values(context.Background(), "", "")
	assert.Equal(t, "a", again[0][0])

	require.NoError(t, r.Append(context.Background(), "", "", [][]string{{"x"}}))
	assert.Len(t, r.Appended(), 1)

	require.NoError(t, r.Clear(context.Background(), "", "Report!A2:L"))
	assert.Empty(t, r.Appended())
	assert.Equal(t, []string{"Report!A2:L"}, r.Cleared)
}
