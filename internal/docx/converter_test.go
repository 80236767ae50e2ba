package docx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOffice mimics soffice: it writes letter.pdf into --outdir.
type fakeOffice struct {
	installed map[string]bool
	fail      bool
	noOutput  bool
	calls     [][]string
}

func (f *fakeOffice) LookPath(name string) (string, error) {
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeOffice) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail {
		return nil, []byte("source file could not be loaded"), errors.New("exit status 1")
	}
	if f.noOutput {
		return nil, nil, nil
	}
	var outdir string
	for i, a := range args {
		if a == "--outdir" {
			outdir = args[i+1]
		}
	}
	return nil, nil, os.WriteFile(filepath.Join(outdir, "letter.pdf"), []byte("%PDF-1.7 converted"), 0o600)
}

func TestToPDF(t *testing.T) {
	office := &fakeOffice{installed: map[string]bool{"libreoffice": true}}
	c := NewConverter(office, "", 0)

	pdf, err := c.ToPDF(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 converted", string(pdf))

	require.Len(t, office.calls, 1)
	call := office.calls[0]
	assert.Equal(t, "/usr/bin/libreoffice", call[0])
	assert.Equal(t, []string{"--headless", "--convert-to", "pdf", "--outdir"}, call[1:5])
	assert.Equal(t, "letter.docx", filepath.Base(call[6]))
}

func TestToPDFExplicitBinary(t *testing.T) {
	office := &fakeOffice{}
	c := NewConverter(office, "/opt/office/soffice", 0)

	_, err := c.ToPDF(context.Background(), []byte("docx"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/office/soffice", office.calls[0][0])
}

func TestToPDFUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		office *fakeOffice
	}{
		{"not installed", &fakeOffice{}},
		{"conversion fails", &fakeOffice{installed: map[string]bool{"soffice": true}, fail: true}},
		{"no output", &fakeOffice{installed: map[string]bool{"soffice": true}, noOutput: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf, err := NewConverter(tt.office, "", 0).ToPDF(context.Background(), []byte("docx"))
			assert.Nil(t, pdf)
			assert.ErrorIs(t, err, ErrPDFUnavailable)
		})
	}
}
