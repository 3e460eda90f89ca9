// Package rpcauth implements the shared-secret authentication scheme
// for juststart's RPC endpoint: a keyed-MAC over each request, paired
// with a per-request nonce and timestamp to bound replay. Grounded on
// mux_server.go's own lock-file-as-mutex discipline for single-writer
// resources, generalized here to a header-checking net/http middleware
// since mux_server.go's unix-socket transport trusts filesystem
// permissions instead and has no equivalent of its own to adapt.
package rpcauth

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	// HeaderNonce carries a per-request random token (rejects replay of
	// an exact prior request within the timestamp window).
	HeaderNonce = "X-Juststart-Nonce"
	// HeaderTimestamp carries the Unix-seconds time the client signed at.
	HeaderTimestamp = "X-Juststart-Timestamp"
	// HeaderMAC carries the hex-free base64-less raw MAC as a string; see Sign.
	HeaderMAC = "X-Juststart-Mac"

	// secretAlphabet and secretLength produce the 20-char alphanumeric
	// password file spec.md §6 describes.
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	secretLength   = 20

	replayWindow = 30 * time.Second
)

// GenerateSecret returns a new random 20-character alphanumeric secret
// suitable for writing to the password file.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	out := make([]byte, secretLength)
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out), nil
}

// mac computes the keyed-MAC over a canonical representation of one
// request: method, path, nonce, timestamp, and body.
func mac(secret []byte, method, path, nonce, timestamp string, body []byte) ([]byte, error) {
	h, err := blake2b.New256(secret)
	if err != nil {
		return nil, fmt.Errorf("constructing blake2b MAC: %w", err)
	}
	for _, part := range []string{method, path, nonce, timestamp} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return h.Sum(nil), nil
}

// Sign computes the header set a client should attach to an outgoing
// request over method/path/body, using a freshly generated nonce and
// the current time.
func Sign(secret []byte, method, path string, body []byte, now time.Time) (headers map[string]string, err error) {
	nonce := uuid.NewString()
	ts := strconv.FormatInt(now.Unix(), 10)
	sum, err := mac(secret, method, path, nonce, ts, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderNonce:     nonce,
		HeaderTimestamp: ts,
		HeaderMAC:       string(sum),
	}, nil
}

// Authenticator validates the header set Sign produces, rejecting
// replayed nonces within replayWindow and MACs that don't match.
type Authenticator struct {
	secret []byte

	mu   sync.Mutex
	seen map[string]time.Time // nonce -> first-seen time, pruned by prune()
}

// New builds an Authenticator keyed by secret (the password file's raw
// bytes).
func New(secret []byte) *Authenticator {
	return &Authenticator{secret: secret, seen: map[string]time.Time{}}
}

func (a *Authenticator) prune(now time.Time) {
	for nonce, seenAt := range a.seen {
		if now.Sub(seenAt) > replayWindow {
			delete(a.seen, nonce)
		}
	}
}

// Check validates method/path/body against the three auth headers,
// returning an error describing the first thing that failed.
func (a *Authenticator) Check(method, path string, body []byte, nonce, timestamp, gotMAC string) error {
	if nonce == "" || timestamp == "" || gotMAC == "" {
		return fmt.Errorf("missing auth headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp: %w", err)
	}
	signedAt := time.Unix(ts, 0)
	now := time.Now()
	if now.Sub(signedAt) > replayWindow || signedAt.Sub(now) > replayWindow {
		return fmt.Errorf("request timestamp outside the allowed window")
	}

	want, err := mac(a.secret, method, path, nonce, timestamp, body)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want, []byte(gotMAC)) != 1 {
		return fmt.Errorf("mac mismatch")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.prune(now)
	if _, dup := a.seen[nonce]; dup {
		return fmt.Errorf("nonce already used")
	}
	a.seen[nonce] = now
	return nil
}

// Middleware wraps next, rejecting any request that fails Check with
// 401 Unauthorized. The request body is read fully (bounded by
// http.MaxBytesReader upstream) and replaced so next still sees it.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readAndRestoreBody(r)
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}

		err = a.Check(r.Method, r.URL.Path, body, r.Header.Get(HeaderNonce), r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderMAC))
		if err != nil {
			http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
