package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var ErrTooLarge = errors.New("receipt exceeds the allowed size")
var ErrUnsupportedType = errors.New("receipt file type is not supported")

var allowedExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true, "pdf": true}

// ReceiptStorage keeps payment receipts on an afero filesystem and serves them under PublicURL.
type ReceiptStorage struct {
	Fs        afero.Fs
	PublicURL string
	MaxSize   int64
	Now       func() time.Time
}

func NewReceiptStorage(fs afero.Fs, publicURL string, maxSize int64) *ReceiptStorage {
	return &ReceiptStorage{Fs: fs, PublicURL: strings.TrimRight(publicURL, "/"), MaxSize: maxSize, Now: time.Now}
}

// NewDiskReceiptStorage roots the storage at dir on the local disk.
func NewDiskReceiptStorage(dir string, publicURL string, maxSize int64) (*ReceiptStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create receipt dir %s: %w", dir, err)
	}
	return NewReceiptStorage(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL, maxSize), nil
}

// Save writes the receipt as receipts/<lottery>/<ticket>-<unix ms>.<ext> and returns its public URL.
func (s *ReceiptStorage) Save(lotteryId string, ticketId string, fileName string, r io.Reader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}
	name := path.Join("receipts", path.Base(lotteryId), fmt.Sprintf("%s-%d.%s", path.Base(ticketId), s.Now().UnixMilli(), ext))
	if err := s.Fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("unable to create receipt folder: %w", err)
	}
	f, err := s.Fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("unable to create receipt %s: %w", name, err)
	}
	src := r
	if s.MaxSize > 0 {
		src = io.LimitReader(r, s.MaxSize+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil && s.MaxSize > 0 && written > s.MaxSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.Fs.Remove(name)
		return "", err
	}
	return s.PublicURL + "/" + name, nil
}

// Open returns a stored receipt by its storage path, as used by the public file route.
func (s *ReceiptStorage) Open(name string) (afero.File, error) {
	clean := path.Clean("/" + name)
	if !strings.HasPrefix(clean, "/receipts/") {
		return nil, os.ErrNotExist
	}
	return s.Fs.Open(strings.TrimPrefix(clean, "/"))
}
