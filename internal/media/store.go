// Package media stores listing images and hands back stable references.
package media

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"business-directory/internal/common/errors"

	"github.com/google/uuid"
)

// MaxImageBytes is the hard upper bound on a stored image.
const MaxImageBytes = 5000000

var (
	ErrTooLarge = stderrors.New("image exceeds size limit")
	ErrNotFound = stderrors.New("media not found")
)

type Object struct {
	Ref         string
	Name        string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) (*Object, error)
	Delete(ctx context.Context, ref string) error
}

// CheckSize rejects payloads above limit before any upload is attempted.
func CheckSize(data []byte, limit int64) error {
	if limit <= 0 || limit > MaxImageBytes {
		limit = MaxImageBytes
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), limit)
	}
	return nil
}

// AsValidation turns a size rejection into a field error on "image" and
// leaves other errors untouched.
func AsValidation(err error) error {
	if stderrors.Is(err, ErrTooLarge) {
		return errors.NewFieldError("image", "Image must be 5MB or smaller")
	}
	return err
}

// DecodeDataURL decodes "data:<mime>;base64,<payload>" image strings. ok is
// false when s is not a data URL, in which case s is an existing reference.
func DecodeDataURL(s string) (data []byte, contentType string, ok bool, err error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, "", false, nil
	}

	header, payload, found := strings.Cut(s[len("data:"):], ",")
	if !found {
		return nil, "", true, errors.NewFieldError("image", "Malformed image data")
	}
	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", true, errors.NewFieldError("image", "Image data must be base64 encoded")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", true, errors.NewFieldError("image", "Only image uploads are accepted")
	}

	// reject before decoding; base64 expands by 4/3
	if int64(len(payload))*3/4 > MaxImageBytes+3 {
		return nil, "", true, AsValidation(ErrTooLarge)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", true, errors.NewFieldError("image", "Image data is not valid base64")
	}
	return data, contentType, true, nil
}

type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	limit   int64
}

func NewMemoryStore(limit int64) *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object), limit: limit}
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := CheckSize(data, m.limit); err != nil {
		return "", err
	}

	ref := uuid.NewString()
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[ref] = &Object{Ref: ref, Name: name, ContentType: http.DetectContentType(buf), Data: buf}
	m.mu.Unlock()
	return ref, nil
}

func (m *MemoryStore) Get(_ context.Context, ref string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[ref]
	if !ok {
		return nil, ErrNotFound
	}
	out := *obj
	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[ref]; !ok {
		return ErrNotFound
	}
	delete(m.objects, ref)
	return nil
}
