package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rummage/profilesync/internal/models"
	"github.com/rummage/profilesync/internal/storage"
)

// fakeProvider is an in-memory identity provider whose state changes are driven by emit.
type fakeProvider struct {
	mu        sync.Mutex
	current   *models.Identity
	listeners map[int]func(*models.Identity)
	nextID    int

	patchErr error
	patches  []models.IdentityPatch
}

func newFakeProvider(current *models.Identity) *fakeProvider {
	return &fakeProvider{current: current, listeners: map[int]func(*models.Identity){}}
}

func (f *fakeProvider) emit(id *models.Identity) {
	f.mu.Lock()
	f.current = id
	listeners := make([]func(*models.Identity), 0, len(f.listeners))
	for i := 0; i < f.nextID; i++ {
		if cb, ok := f.listeners[i]; ok {
			listeners = append(listeners, cb)
		}
	}
	f.mu.Unlock()
	for _, cb := range listeners {
		cb(id)
	}
}

func (f *fakeProvider) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.emit(nil)
	return nil
}

func (f *fakeProvider) PatchIdentity(ctx context.Context, id string, patch models.IdentityPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patch)
	if f.current != nil && f.current.ID == id && patch.PhotoURI != nil {
		f.current.PhotoURI = *patch.PhotoURI
	}
	return nil
}

func (f *fakeProvider) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeProvider) ObserveState(callback func(*models.Identity)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = callback
	current := f.current
	f.mu.Unlock()

	callback(current)
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// mockIdentity records calls for call-count assertions.
type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	args := m.Called(ctx, email, password)
	id, _ := args.Get(0).(*models.Identity)
	return id, args.Error(1)
}

func (m *mockIdentity) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	args := m.Called(ctx, email, password)
	id, _ := args.Get(0).(*models.Identity)
	return id, args.Error(1)
}

func (m *mockIdentity) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockIdentity) PatchIdentity(ctx context.Context, id string, patch models.IdentityPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockIdentity) ObserveState(callback func(*models.Identity)) func() {
	args := m.Called(callback)
	return args.Get(0).(func())
}

type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error) {
	args := m.Called(ctx, id)
	doc, _ := args.Get(0).(*models.ProfileDocument)
	return doc, args.Error(1)
}

func (m *mockProfileStore) CreateProfile(ctx context.Context, doc *models.ProfileDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockProfileStore) PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

// memoryProfileStore behaves like the real stores and counts calls.
type memoryProfileStore struct {
	mu        sync.Mutex
	docs      map[string]models.ProfileDocument
	createErr error
	patchErr  error
	getErr    error
	gets      int
	patches   int
	getGate   chan struct{}
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{docs: map[string]models.ProfileDocument{}}
}

func (s *memoryProfileStore) GetProfile(ctx context.Context, id string) (*models.ProfileDocument, error) {
	s.mu.Lock()
	gate := s.getGate
	s.gets++
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	doc.ID = id
	return &doc, nil
}

func (s *memoryProfileStore) CreateProfile(ctx context.Context, doc *models.ProfileDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.docs[doc.ID]; ok {
		return storage.ErrAlreadyExists
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *memoryProfileStore) PatchProfile(ctx context.Context, id string, patch models.ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patchErr != nil {
		return s.patchErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	patch.Apply(&doc)
	s.docs[id] = doc
	s.patches++
	return nil
}

func (s *memoryProfileStore) doc(id string) models.ProfileDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

func (s *memoryProfileStore) counts() (gets, patches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.patches
}

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
	putErr  error
	uriErr  error
	onPut   func(ctx context.Context)
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memoryObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.onPut != nil {
		s.onPut(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.objects[key] = data
	s.types[key] = contentType
	s.puts++
	return nil
}

func (s *memoryObjectStore) RetrievalURI(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uriErr != nil {
		return "", s.uriErr
	}
	if _, ok := s.objects[key]; !ok {
		return "", storage.ErrNotFound
	}
	return fmt.Sprintf("https://objects.test/%s?v=%d", key, s.puts), nil
}

func (s *memoryObjectStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *memoryObjectStore) object(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// fakeSource returns ref or err for both library and camera requests.
type fakeSource struct {
	ref     *models.ImageRef
	err     error
	library int
	camera  int
	capture func(ctx context.Context) (*models.ImageRef, error)
}

func (s *fakeSource) PickFromLibrary(ctx context.Context) (*models.ImageRef, error) {
	s.library++
	if s.capture != nil {
		return s.capture(ctx)
	}
	return s.ref, s.err
}

func (s *fakeSource) CaptureFromCamera(ctx context.Context) (*models.ImageRef, error) {
	s.camera++
	if s.capture != nil {
		return s.capture(ctx)
	}
	return s.ref, s.err
}

type fakeTransformer struct {
	err     error
	size    int
	quality int
	input   *models.ImageRef
}

func (t *fakeTransformer) Transform(ctx context.Context, ref *models.ImageRef, size, quality int) (*models.ImageRef, error) {
	t.input, t.size, t.quality = ref, size, quality
	if t.err != nil {
		return nil, t.err
	}
	return &models.ImageRef{Data: []byte("transformed"), ContentType: "image/jpeg", Width: size, Height: size}, nil
}

type fakeScreener struct {
	err error
}

func (s *fakeScreener) Screen(ctx context.Context, ref *models.ImageRef) error {
	return s.err
}

func strPtr(s string) *string { return &s }
