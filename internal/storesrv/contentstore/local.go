package contentstore

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStore keeps objects as files below a root directory.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, ErrStorage.MsgErr("invalid storage path", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ErrStorage.MsgErr("unable to create storage directory", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Provider() Provider {
	return ProviderLocal
}

// Root returns the absolute directory backing the store.
func (s *LocalStore) Root() string {
	return s.root
}

// filePath maps a key to a path below root. The containment check holds even if
// NormalizeKey changes.
func (s *LocalStore) filePath(key string) (string, string, error) {
	k, err := normalize(key)
	if err != nil {
		return "", "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(k))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", ErrInvalidKey.Msg("object key escapes storage root: " + key)
	}
	return k, p, nil
}

// Put writes into a temporary file next to the destination and renames it into
// place so readers never observe a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, opts ...PutOption) error {
	k, p, err := s.filePath(key)
	if err != nil {
		return err
	}
	failed := func(err error) error {
		log.Ctx(ctx).Error().Err(err).Str("key", k).Msg("local put failed")
		return ErrPutFailed.Msg("failed to store object at key: " + k).Err(err)
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failed(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return failed(err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return failed(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return failed(err)
	}
	if err := tmp.Close(); err != nil {
		return failed(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return failed(err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return failed(err)
	}
	tmpName = ""
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	k, p, err := s.filePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound.Msg("file not found: " + k).Err(err)
		}
		return nil, ErrGetFailed.Msg("failed to read object at key: " + k).Err(err)
	}
	return data, nil
}

func (s *LocalStore) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	k, _, err := s.filePath(key)
	if err != nil {
		return "", err
	}
	segments := strings.Split(k, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/"), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	k, p, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ErrDeleteFailed.Msg("failed to delete object at key: " + k).Err(err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	k, p, err := s.filePath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ErrExistsFailed.Msg("failed to check object at key: " + k).Err(err)
	}
	return !info.IsDir(), nil
}
