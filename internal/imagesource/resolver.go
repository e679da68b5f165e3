// Package imagesource loads screenshot bytes from a reference: "-" for
// stdin, "s3://bucket/key" for object storage, anything else a local path.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"calibra/internal/domain"
	"calibra/internal/port"
)

const (
	StdinRef = "-"
	s3Scheme = "s3://"
)

// ErrStorageNotConfigured is returned for s3:// references when no object
// storage was wired in.
var ErrStorageNotConfigured = errors.New("object storage not configured")

// Source is a loaded image and a display name for it.
type Source struct {
	Name string
	Data []byte
}

// Resolver loads images by reference. storage may be nil.
type Resolver struct {
	storage  port.ObjectStorage
	stdin    io.Reader
	maxBytes int64
}

// NewResolver creates a Resolver. stdin defaults to os.Stdin.
func NewResolver(storage port.ObjectStorage, stdin io.Reader, maxBytes int64) *Resolver {
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Resolver{storage: storage, stdin: stdin, maxBytes: maxBytes}
}

// Load reads the image named by ref.
func (r *Resolver) Load(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty image reference", domain.ErrImageNotFound)
	case ref == StdinRef:
		return r.loadStdin()
	case strings.HasPrefix(ref, s3Scheme):
		return r.loadS3(ctx, ref)
	default:
		return r.loadFile(ref)
	}
}

func (r *Resolver) loadStdin() (*Source, error) {
	data, err := r.readLimited(r.stdin, "stdin")
	if err != nil {
		return nil, err
	}
	return &Source{Name: "stdin", Data: data}, nil
}

func (r *Resolver) loadS3(ctx context.Context, ref string) (*Source, error) {
	bucket, key, err := ParseS3URI(ref)
	if err != nil {
		return nil, err
	}
	if r.storage == nil {
		return nil, fmt.Errorf("loading %s: %w", ref, ErrStorageNotConfigured)
	}
	data, err := r.storage.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", ref, err)
	}
	if r.tooLarge(int64(len(data))) {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrImageTooLarge, ref, r.maxBytes)
	}
	return &Source{Name: path.Base(key), Data: data}, nil
}

func (r *Resolver) loadFile(name string) (*Source, error) {
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, name)
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrImageNotFound, name)
	}
	if r.tooLarge(info.Size()) {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrImageTooLarge, name, info.Size())
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	data, err := r.readLimited(f, name)
	if err != nil {
		return nil, err
	}
	return &Source{Name: filepath.Base(name), Data: data}, nil
}

func (r *Resolver) readLimited(src io.Reader, name string) ([]byte, error) {
	if r.maxBytes > 0 {
		src = io.LimitReader(src, r.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if r.tooLarge(int64(len(data))) {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrImageTooLarge, name, r.maxBytes)
	}
	return data, nil
}

func (r *Resolver) tooLarge(n int64) bool {
	return r.maxBytes > 0 && n > r.maxBytes
}

// ParseS3URI splits "s3://bucket/key" into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: invalid s3 uri %q, want s3://bucket/key", domain.ErrImageNotFound, uri)
	}
	return bucket, key, nil
}
