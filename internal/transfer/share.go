package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puntazo/puntazo/internal/catalog"
)

// SharedPrefix is the storage prefix of uploaded share payloads.
const SharedPrefix = "shared/"

// ObjectStore is the subset of storage used to publish shared clips.
type ObjectStore interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	GenerateDownloadURLWithDisposition(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

// StorageSharer uploads the payload and returns a presigned link that
// downloads it as an attachment.
type StorageSharer struct {
	Store  ObjectStore
	Expiry time.Duration
}

func (s StorageSharer) Share(ctx context.Context, f File) (string, error) {
	if s.Store == nil {
		return "", ErrShareUnavailable
	}
	key := SharedPrefix + uuid.NewString() + "/" + f.Name
	if err := s.Store.PutBytes(ctx, key, f.Data, f.ContentType); err != nil {
		return "", fmt.Errorf("upload shared clip: %w", err)
	}
	link, err := s.Store.GenerateDownloadURLWithDisposition(ctx, key, f.Name, s.expiry())
	if err != nil {
		return "", fmt.Errorf("sign shared clip: %w", err)
	}
	return link, nil
}

func (s StorageSharer) expiry() time.Duration {
	if s.Expiry <= 0 {
		return 8 * time.Hour
	}
	return s.Expiry
}

// FileSaver writes payloads into Dir. Files are written to a temporary
// name and renamed so a partial clip never appears under its final name.
type FileSaver struct {
	Dir string
}

func (s FileSaver) Save(_ context.Context, f File) (string, error) {
	if s.Dir == "" {
		return "", errors.New("no download directory")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	name := filepath.Base(f.Name)
	if name == "." || name == string(filepath.Separator) {
		name = "clip.mp4"
	}
	dest := filepath.Join(s.Dir, name)

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(f.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename %s: %w", dest, err)
	}
	return dest, nil
}

// Presigner signs attachment downloads of stored objects.
type Presigner interface {
	GenerateDownloadURLWithDisposition(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

// StorageLinker links clips that live in the object store. Clip addresses
// are expected under BaseURL; the remainder of the address is the key.
type StorageLinker struct {
	Store   Presigner
	BaseURL string
	Expiry  time.Duration
}

func (l StorageLinker) DirectLink(ctx context.Context, e catalog.Entry) (string, error) {
	base := strings.TrimSuffix(l.BaseURL, "/") + "/"
	if l.Store == nil || l.BaseURL == "" || !strings.HasPrefix(e.URL, base) {
		return URLLinker{}.DirectLink(ctx, e)
	}
	key := strings.TrimPrefix(e.URL, base)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	expiry := l.Expiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return l.Store.GenerateDownloadURLWithDisposition(ctx, key, path.Base(e.Name), expiry)
}

// URLLinker returns the clip address itself, rewritten for direct download.
type URLLinker struct{}

func (URLLinker) DirectLink(_ context.Context, e catalog.Entry) (string, error) {
	if e.URL == "" {
		return "", errors.New("clip has no address")
	}
	return catalog.DirectURL(e.URL), nil
}
