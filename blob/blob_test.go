package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	tests := []struct {
		name      string
		container string
		file      string
		data      []byte
		wantErr   error
	}{
		{"payment proof", PaymentProofs, "receipt.pdf", []byte("%PDF"), nil},
		{"product image", ProductImages, "shoe.png", []byte{0x89, 'P', 'N', 'G'}, nil},
		{"path is stripped", ProductImages, "../../etc/passwd", []byte("x"), nil},
		{"windows path", ProductImages, `c:\tmp\a.jpg`, []byte("x"), nil},
		{"unknown container", "secrets", "a.txt", []byte("x"), ErrUnknownContainer},
		{"blank name", PaymentProofs, "  ", []byte("x"), ErrInvalidName},
		{"dot dot", PaymentProofs, "..", []byte("x"), ErrInvalidName},
		{"empty data", PaymentProofs, "a.txt", nil, ErrEmpty},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mem := afero.NewMemMapFs()
			s := NewFS(mem, "uploads")
			ref, err := s.Upload(context.Background(), test.container, test.file, test.data)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ref, test.container+"/"), ref)
			assert.NotContains(t, ref, "..")
			raw, err := afero.ReadFile(mem, "uploads/"+ref)
			require.NoError(t, err)
			assert.Equal(t, test.data, raw)

			got, err := s.Open(context.Background(), ref)
			require.NoError(t, err)
			assert.Equal(t, test.data, got)
		})
	}
}

func TestUploadKeepsBoth(t *testing.T) {
	s := NewFS(afero.NewMemMapFs(), "")
	a, err := s.Upload(context.Background(), ProductImages, "same.png", []byte("a"))
	require.NoError(t, err)
	b, err := s.Upload(context.Background(), ProductImages, "same.png", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "-same.png"))
}

func TestOpenMissing(t *testing.T) {
	s := NewFS(afero.NewMemMapFs(), "")
	for _, ref := range []string{"payment-proofs/nope", "other/file", "noslash", "product-images/../x"} {
		_, err := s.Open(context.Background(), ref)
		assert.ErrorIs(t, err, ErrNotFound, ref)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFS(afero.NewMemMapFs(), "").Upload(ctx, ProductImages, "a.png", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
