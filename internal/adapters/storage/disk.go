package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DiskPrefix is the URL path under which DiskStore serves files.
const DiskPrefix = "/files/"

var errInvalidKey = errors.New("invalid object key")

// DiskStore keeps objects in a local directory for development. URLs it hands out are
// signed with an HMAC and an expiry, and ServeHTTP only serves requests carrying a valid one.
type DiskStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewDiskStore(dir, baseURL string, secret []byte) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}

func (d *DiskStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if !validKey(key) {
		return errInvalidKey
	}
	f, err := os.OpenFile(filepath.Join(d.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, io.LimitReader(body, size)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	return f.Close()
}

func (d *DiskStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, d.secret)
	fmt.Fprintf(mac, "%s|%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *DiskStore) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !validKey(key) {
		return "", errInvalidKey
	}
	exp := d.now().Add(expiry).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", d.sign(key, exp))
	return d.baseURL + DiskPrefix + url.PathEscape(key) + "?" + q.Encode(), nil
}

// ServeHTTP serves a stored object when the request carries an unexpired signature.
func (d *DiskStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, DiskPrefix)
	exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if !validKey(key) || err != nil {
		http.NotFound(w, r)
		return
	}
	want := d.sign(key, exp)
	if !hmac.Equal([]byte(want), []byte(r.URL.Query().Get("sig"))) || d.now().Unix() > exp {
		http.Error(w, "link expired or invalid", http.StatusForbidden)
		return
	}
	http.ServeFile(w, r, filepath.Join(d.dir, key))
}
