package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Acme Corp":          "Acme_Corp",
		"  Joe's Diner #2  ": "Joes_Diner_2",
		"../../etc/passwd":   "etcpasswd",
		"café-bar_1":         "caf-bar_1",
		"<script>":           "script",
		"!!!":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), "input %q", in)
	}
}

func TestSaveUpload(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))

	p, err := s.SaveUpload("Acme", KindBankTx, models.Window3M, strings.NewReader("date,amount\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "uploads", "Acme", "bank_tx_3m.csv"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "date,amount\n", string(data))
}

func TestMemoPathAndURL(t *testing.T) {
	s := New("u", "o")
	assert.Equal(t, filepath.Join("o", "Acme", "Credit_Memo_Acme_6m.pdf"), s.MemoPath("Acme", models.Window6M))
	assert.Equal(t, "/download/Acme/Credit_Memo_Acme_6m.pdf", DownloadURL("Acme", MemoFileName("Acme", models.Window6M)))
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	s := New(filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))

	memo := s.MemoPath("Acme", models.Window3M)
	require.NoError(t, os.MkdirAll(filepath.Dir(memo), 0o755))
	require.NoError(t, os.WriteFile(memo, []byte("%PDF-1.3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))

	f, info, err := s.Open("Acme", "Credit_Memo_Acme_3m.pdf")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(8), info.Size())

	for _, tc := range []struct{ slug, name string }{
		{"Acme", "missing.pdf"},
		{"Acme", "../../secret.txt"},
		{"..", "secret.txt"},
		{"Acme", ".."},
		{"", "Credit_Memo_Acme_3m.pdf"},
		{"Acme", ""},
	} {
		_, _, err := s.Open(tc.slug, tc.name)
		require.Error(t, err, "%s/%s", tc.slug, tc.name)
		assert.True(t, errors.HasCode(err, errors.ErrCodeArtifactNotFound), "%s/%s", tc.slug, tc.name)
	}
}
