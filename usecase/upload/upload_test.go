package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ocxers/domain"
)

type memoryStore struct {
	key         string
	contentType string
	body        string
	err         error
}

func (m *memoryStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	raw, _ := io.ReadAll(body)
	m.key, m.contentType, m.body = key, contentType, string(raw)
	return "https://cdn.test/" + key, nil
}

func TestService_Upload(t *testing.T) {
	t.Parallel()
	store := &memoryStore{}
	svc := NewService(store, "/uploads/", zaptest.NewLogger(t))

	loc, err := svc.Upload(context.Background(), "u1", File{Name: "../../etc/report.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF"), Size: 4})
	require.NoError(t, err)
	assert.Equal(t, "uploads/__ocxers__/u1/documents/report.pdf", store.key)
	assert.Equal(t, "https://cdn.test/uploads/__ocxers__/u1/documents/report.pdf", loc)
	assert.Equal(t, "application/pdf", store.contentType)
	assert.Equal(t, "%PDF", store.body)
}

func TestService_UploadRejects(t *testing.T) {
	t.Parallel()
	svc := NewService(&memoryStore{}, "uploads", nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "u1", File{Name: "a.png"})
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Upload(ctx, "", File{Name: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	for _, name := range []string{"", "  ", "/"} {
		_, err = svc.Upload(ctx, "u1", File{Name: name, Body: strings.NewReader("x")})
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid), name)
	}

	failing := NewService(&memoryStore{err: errors.New("denied")}, "uploads", nil)
	_, err = failing.Upload(ctx, "u1", File{Name: "a.png", Body: strings.NewReader("x")})
	assert.EqualError(t, err, "denied")
}
