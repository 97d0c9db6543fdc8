// Package session owns the bearer credential of the node: one-shot
// acquisition against the token endpoint, refresh-token renewal, and the
// fixed-lease validity window that forces proactive renewal.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/windevs/sensornode/log2"
)

// DefaultLease is deliberately shorter than any real server-side token
// lifetime, so the node renews before the server ever rejects.
const DefaultLease = 300 * time.Second

const DefaultTimeout = 10 * time.Second

var ErrAuth = errors.New("authentication rejected")

func IsAuthError(e error) bool { return errors.Cause(e) == ErrAuth }

// Credential is the access+refresh pair authorizing uploads.
// Replaced wholesale on renewal, never patched.
type Credential struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

func (c Credential) Zero() bool { return c.Access == "" && c.Refresh == "" }

type Config struct {
	TokenURL   string
	RefreshURL string
	Username   string
	Password   string
	Lease      time.Duration
	Timeout    time.Duration
}

// Manager holds at most one Credential. Single attempt per call, no retry
// loops inside; the control loop decides when to call again.
type Manager struct {
	log     *log2.Log
	config  Config
	client  *http.Client
	now     func() time.Time
	current Credential
}

// NewManager with rt=nil uses default transport. now=nil uses time.Now.
func NewManager(log *log2.Log, config Config, rt http.RoundTripper, now func() time.Time) *Manager {
	if config.Lease == 0 {
		config.Lease = DefaultLease
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		log:    log,
		config: config,
		client: &http.Client{Transport: rt, Timeout: config.Timeout},
		now:    now,
	}
}

// Acquire trades username/password for a fresh Credential.
// On any failure the held Credential (or lack of one) is unchanged.
func (m *Manager) Acquire(ctx context.Context) error {
	tr, err := m.exchange(ctx, m.config.TokenURL, map[string]string{
		"username": m.config.Username,
		"password": m.config.Password,
	})
	if err != nil {
		return errors.Annotate(err, "acquire")
	}
	m.install(tr)
	m.log.Infof("session acquired expires_at=%s", m.current.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Renew trades the held refresh token for a new pair. Valid on an expired
// Credential, the refresh token may outlive the access token. Failure
// leaves the previous Credential in place so the caller may fall back to
// Acquire next cycle.
func (m *Manager) Renew(ctx context.Context) error {
	if m.current.Zero() {
		return errors.Annotate(ErrAuth, "renew without credential")
	}
	tr, err := m.exchange(ctx, m.config.RefreshURL, map[string]string{
		"refresh": m.current.Refresh,
	})
	if err != nil {
		return errors.Annotate(err, "renew")
	}
	m.install(tr)
	m.log.Infof("session renewed expires_at=%s", m.current.ExpiresAt.Format(time.RFC3339))
	return nil
}

// NeedsRenewal is true with no Credential held or now at/past expiry.
func (m *Manager) NeedsRenewal(now time.Time) bool {
	if m.current.Zero() {
		return true
	}
	return !now.Before(m.current.ExpiresAt)
}

func (m *Manager) Current() (Credential, bool) {
	return m.current, !m.current.Zero()
}

// Forget drops to unauthenticated state after unrecoverable failure.
func (m *Manager) Forget() { m.current = Credential{} }

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (m *Manager) install(tr tokenResponse) {
	m.current = Credential{
		Access:    tr.Access,
		Refresh:   tr.Refresh,
		ExpiresAt: m.now().Add(m.config.Lease),
	}
}

func (m *Manager) exchange(ctx context.Context, url string, body map[string]string) (tokenResponse, error) {
	var tr tokenResponse

	payload, err := json.Marshal(body)
	if err != nil {
		return tr, errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return tr, errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return tr, errors.Annotatef(err, "auth endpoint=%s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return tr, errors.Annotatef(ErrAuth, "auth endpoint=%s status=%d", url, resp.StatusCode)
	}
	if err = json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tr, errors.Annotatef(ErrAuth, "auth endpoint=%s malformed body err=%v", url, err)
	}
	if tr.Access == "" || tr.Refresh == "" {
		return tr, errors.Annotatef(ErrAuth, "auth endpoint=%s body missing tokens", url)
	}
	return tr, nil
}
