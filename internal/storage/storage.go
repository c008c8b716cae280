// Package storage keeps uploaded ledgers and generated memos on local disk,
// one directory per business slug.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

// Upload file kinds.
const (
	KindBankTx  = "bank_tx"
	KindPnL     = "pnl_monthly"
	KindVendors = "vendors"
)

type Store struct {
	uploadDir string
	outputDir string
}

func New(uploadDir, outputDir string) *Store {
	return &Store{uploadDir: uploadDir, outputDir: outputDir}
}

// Slug reduces a business name to ASCII letters, digits, '-' and '_'.
// Spaces become underscores and everything else is dropped.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// UploadName is the on-disk name of an uploaded file, e.g. bank_tx_3m.csv.
func UploadName(kind string, window models.Window) string {
	return fmt.Sprintf("%s_%s.csv", kind, window)
}

// UploadPath is where SaveUpload puts the kind file of window for slug.
func (s *Store) UploadPath(slug, kind string, window models.Window) string {
	return filepath.Join(s.uploadDir, slug, UploadName(kind, window))
}

// SaveUpload copies r to <upload_dir>/<slug>/<kind>_<window>.csv and returns the path.
func (s *Store) SaveUpload(slug, kind string, window models.Window, r io.Reader) (string, error) {
	dir := filepath.Join(s.uploadDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.NewArtifactStorageError(dir, err)
	}

	p := s.UploadPath(slug, kind, window)
	f, err := os.Create(p)
	if err != nil {
		return "", errors.NewArtifactStorageError(p, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", errors.NewArtifactStorageError(p, err)
	}
	if err := f.Close(); err != nil {
		return "", errors.NewArtifactStorageError(p, err)
	}
	return p, nil
}

// MemoFileName is the memo file name for a business slug and window.
func MemoFileName(slug string, window models.Window) string {
	return fmt.Sprintf("Credit_Memo_%s_%s.pdf", slug, window)
}

// MemoPath is where the memo for slug and window is written.
func (s *Store) MemoPath(slug string, window models.Window) string {
	return filepath.Join(s.outputDir, slug, MemoFileName(slug, window))
}

// DownloadURL is the public path that serves a stored memo.
func DownloadURL(slug, fileName string) string {
	return path.Join("/download", slug, fileName)
}

// Open returns a stored output file. Names that are not plain slugs or base
// file names are reported as not found.
func (s *Store) Open(slug, fileName string) (*os.File, os.FileInfo, error) {
	if slug == "" || Slug(slug) != slug || !isPlainName(fileName) {
		return nil, nil, errors.NewArtifactNotFoundError()
	}

	f, err := os.Open(filepath.Join(s.outputDir, slug, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewArtifactNotFoundError()
		}
		return nil, nil, errors.NewArtifactStorageError(fileName, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.NewArtifactStorageError(fileName, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, errors.NewArtifactNotFoundError()
	}
	return f, info, nil
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
