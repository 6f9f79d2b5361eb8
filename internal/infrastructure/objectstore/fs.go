package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

var ErrBadSignature = errors.New("signed url rejected")

// FSStore keeps objects on the local filesystem under <root>/<owner>/<file>
// and signs retrieval URLs with an HMAC over key and expiry. Objects are
// write-once; the store never overwrites.
type FSStore struct {
	root    string
	secret  []byte
	baseURL string
}

var _ ports.ObjectStore = (*FSStore)(nil)

func NewFSStore(root, baseURL string, secret []byte) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create storage root %q", root)
	}
	return &FSStore{
		root:    root,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *FSStore) Upload(ctx context.Context, ownerID, fileName string, payload []byte) (ports.ObjectRef, error) {
	key, err := s.objectKey(ctx, ownerID, fileName)
	if err != nil {
		return ports.ObjectRef{}, err
	}
	if len(payload) == 0 {
		return ports.ObjectRef{}, errors.New("payload is required")
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err == nil {
		return ports.ObjectRef{}, ports.ErrObjectExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return ports.ObjectRef{}, errs.Wrapf(err, "stat object %q", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ports.ObjectRef{}, errs.Wrapf(err, "create owner directory for %q", key)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return ports.ObjectRef{}, errs.Wrapf(err, "write object %q", key)
	}

	return ports.ObjectRef{Key: key, Size: int64(len(payload))}, nil
}

func (s *FSStore) SignedURL(ctx context.Context, ownerID, fileName string, ttl time.Duration) (string, error) {
	key, err := s.objectKey(ctx, ownerID, fileName)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ports.ErrObjectNotFound
		}
		return "", errs.Wrapf(err, "stat object %q", key)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(key, expires)

	query := url.Values{}
	query.Set("exp", strconv.FormatInt(expires, 10))
	query.Set("sig", sig)
	return fmt.Sprintf("%s/objects/%s?%s", s.baseURL, key, query.Encode()), nil
}

func (s *FSStore) Delete(ctx context.Context, ownerID, fileName string) error {
	key, err := s.objectKey(ctx, ownerID, fileName)
	if err != nil {
		return err
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.ErrObjectNotFound
		}
		return errs.Wrapf(err, "delete object %q", key)
	}
	return nil
}

// Verify checks the signature of a retrieval request. The server's /objects
// handler calls this before serving bytes.
func (s *FSStore) Verify(key string, expires int64, sig string) error {
	if time.Now().Unix() > expires {
		return fmt.Errorf("%w: expired", ErrBadSignature)
	}
	expected := s.sign(key, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrBadSignature)
	}
	return nil
}

// ReadObject returns the stored payload for a verified retrieval.
func (s *FSStore) ReadObject(ctx context.Context, ownerID, fileName string) ([]byte, error) {
	key, err := s.objectKey(ctx, ownerID, fileName)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ports.ErrObjectNotFound
		}
		return nil, errs.Wrapf(err, "read object %q", key)
	}
	return payload, nil
}

func (s *FSStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + ":" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FSStore) objectKey(ctx context.Context, ownerID, fileName string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	return buildKey(ownerID, fileName)
}

func buildKey(ownerID, fileName string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", ports.ErrNotAuthenticated
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", errors.New("file name is required")
	}
	// Keys stay flat: one owner directory, one object name. Path separators
	// in either part would escape the namespace.
	if strings.ContainsAny(ownerID, `/\`) || strings.ContainsAny(fileName, `/\`) {
		return "", errors.New("owner id and file name must not contain path separators")
	}
	return ownerID + "/" + fileName, nil
}
