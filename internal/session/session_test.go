package session

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windevs/sensornode/helpers"
	"github.com/windevs/sensornode/log2"
)

const testLease = 300 * time.Second

type fakeAuthServer struct {
	t            *testing.T
	acquireCode  string
	renewCode    string
	acquireBody  string
	renewBody    string
	acquireCalls int
	renewCalls   int
	lastRequest  map[string]string
}

func (f *fakeAuthServer) roundTrip(req *http.Request) (*http.Response, error) {
	body := map[string]string{}
	require.NoError(f.t, json.NewDecoder(req.Body).Decode(&body))
	f.lastRequest = body
	switch req.URL.Path {
	case "/token":
		f.acquireCalls++
		return helpers.MockResponse(req, f.acquireCode, f.acquireBody)
	case "/refresh":
		f.renewCalls++
		return helpers.MockResponse(req, f.renewCode, f.renewBody)
	}
	f.t.Fatalf("unexpected path %s", req.URL.Path)
	return nil, nil
}

func newTestManager(t *testing.T, f *fakeAuthServer, now func() time.Time) *Manager {
	return NewManager(
		log2.NewTest(t, log2.LDebug),
		Config{
			TokenURL:   "http://collector.test/token",
			RefreshURL: "http://collector.test/refresh",
			Username:   "bekhzad",
			Password:   "admin",
			Lease:      testLease,
		},
		&helpers.MockHTTP{Fun: f.roundTrip},
		now,
	)
}

func TestAcquireSuccess(t *testing.T) {
	t.Parallel()

	begin := time.Date(2024, 2, 7, 10, 15, 25, 0, time.UTC)
	f := &fakeAuthServer{t: t,
		acquireCode: "200 OK",
		acquireBody: `{"access":"jwt-a1","refresh":"jwt-r1"}`,
	}
	m := newTestManager(t, f, func() time.Time { return begin })

	require.NoError(t, m.Acquire(context.Background()))
	assert.Equal(t, "bekhzad", f.lastRequest["username"])
	assert.Equal(t, "admin", f.lastRequest["password"])

	cred, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "jwt-a1", cred.Access)
	assert.Equal(t, "jwt-r1", cred.Refresh)

	assert.False(t, m.NeedsRenewal(begin))
	assert.False(t, m.NeedsRenewal(begin.Add(testLease-time.Second)))
	assert.True(t, m.NeedsRenewal(begin.Add(testLease)))
	assert.True(t, m.NeedsRenewal(begin.Add(testLease+time.Hour)))
}

func TestAcquireServerError(t *testing.T) {
	t.Parallel()

	f := &fakeAuthServer{t: t, acquireCode: "500 Internal Server Error"}
	m := newTestManager(t, f, nil)

	err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	_, ok := m.Current()
	assert.False(t, ok)
	assert.True(t, m.NeedsRenewal(time.Now()))
}

func TestAcquireMalformedBody(t *testing.T) {
	t.Parallel()

	cases := []string{`{`, `{"access":"only-half"}`, `{}`}
	for _, body := range cases {
		f := &fakeAuthServer{t: t, acquireCode: "200 OK", acquireBody: body}
		m := newTestManager(t, f, nil)
		err := m.Acquire(context.Background())
		require.Error(t, err, "body=%s", body)
		assert.True(t, IsAuthError(err))
		_, ok := m.Current()
		assert.False(t, ok)
	}
}

func TestRenewReplacesBothTokens(t *testing.T) {
	t.Parallel()

	f := &fakeAuthServer{t: t,
		acquireCode: "200 OK",
		acquireBody: `{"access":"jwt-a1","refresh":"jwt-r1"}`,
		renewCode:   "200 OK",
		renewBody:   `{"access":"jwt-a2","refresh":"jwt-r2"}`,
	}
	m := newTestManager(t, f, nil)
	require.NoError(t, m.Acquire(context.Background()))

	require.NoError(t, m.Renew(context.Background()))
	assert.Equal(t, "jwt-r1", f.lastRequest["refresh"])

	cred, _ := m.Current()
	assert.Equal(t, "jwt-a2", cred.Access)
	assert.Equal(t, "jwt-r2", cred.Refresh)
}

func TestRenewFailureKeepsCredential(t *testing.T) {
	t.Parallel()

	f := &fakeAuthServer{t: t,
		acquireCode: "200 OK",
		acquireBody: `{"access":"jwt-a1","refresh":"jwt-r1"}`,
		renewCode:   "401 Unauthorized",
	}
	m := newTestManager(t, f, nil)
	require.NoError(t, m.Acquire(context.Background()))

	err := m.Renew(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	cred, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "jwt-a1", cred.Access)
	assert.Equal(t, "jwt-r1", cred.Refresh)
}

func TestRenewWithoutCredential(t *testing.T) {
	t.Parallel()

	f := &fakeAuthServer{t: t}
	m := newTestManager(t, f, nil)
	err := m.Renew(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 0, f.renewCalls)
}

func TestRenewOnExpiredCredential(t *testing.T) {
	t.Parallel()

	// refresh token may still be valid after access expiry
	f := &fakeAuthServer{t: t,
		acquireCode: "200 OK",
		acquireBody: `{"access":"jwt-a1","refresh":"jwt-r1"}`,
		renewCode:   "200 OK",
		renewBody:   `{"access":"jwt-a2","refresh":"jwt-r2"}`,
	}
	now := time.Date(2024, 2, 7, 10, 0, 0, 0, time.UTC)
	m := newTestManager(t, f, func() time.Time { return now })
	require.NoError(t, m.Acquire(context.Background()))

	now = now.Add(time.Hour)
	require.True(t, m.NeedsRenewal(now))
	require.NoError(t, m.Renew(context.Background()))
	assert.False(t, m.NeedsRenewal(now.Add(testLease-time.Second)))
}

func TestForget(t *testing.T) {
	t.Parallel()

	f := &fakeAuthServer{t: t,
		acquireCode: "200 OK",
		acquireBody: `{"access":"jwt-a1","refresh":"jwt-r1"}`,
	}
	m := newTestManager(t, f, nil)
	require.NoError(t, m.Acquire(context.Background()))
	m.Forget()
	_, ok := m.Current()
	assert.False(t, ok)
}
