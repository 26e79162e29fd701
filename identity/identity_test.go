package identity

import (
	"strings"
	"testing"

	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/persistence"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// MockStore is an in-memory test double for the persistence.Store interface.
type MockStore struct {
	ident      *models.PlayerIdentity
	saveCalls  int
	loadCalls  int
	identities []models.PlayerIdentity
}

func (m *MockStore) SaveIdentity(ident *models.PlayerIdentity) error {
	m.saveCalls++
	copied := *ident
	m.ident = &copied
	m.identities = append(m.identities, copied)
	return nil
}

func (m *MockStore) LoadIdentity() (*models.PlayerIdentity, error) {
	m.loadCalls++
	if m.ident == nil {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *m.ident
	return &copied, nil
}

func (m *MockStore) SaveRoomArchive(archive *models.RoomArchive) error { return nil }

func (m *MockStore) LoadRoomArchives(kind models.GameKind) ([]models.RoomArchive, error) {
	return nil, nil
}

func (m *MockStore) Close() error { return nil }

func TestBootstrap_GeneratesAndPersists(t *testing.T) {
	mock := &MockStore{}
	store := NewStore(mock)

	ident, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap should not return an error, but got: %v", err)
	}

	if len(ident.Token) != 24 {
		t.Errorf("Expected a 24-character token, got %d characters", len(ident.Token))
	}
	for _, r := range ident.Token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Errorf("Token contains character %q outside the alphabet", r)
		}
	}

	if ident.DisplayName == "" {
		t.Error("Expected a generated display name")
	}
	if ident.AvatarID != defaultAvatarID {
		t.Errorf("Expected default avatar %q, got %q", defaultAvatarID, ident.AvatarID)
	}

	// The identity must be persisted before first use.
	if mock.saveCalls != 1 {
		t.Errorf("Expected exactly 1 save during bootstrap, got %d", mock.saveCalls)
	}
	if mock.ident == nil || mock.ident.Token != ident.Token {
		t.Error("Persisted identity does not match the returned one")
	}
}

func TestBootstrap_SecondCallReturnsSameIdentity(t *testing.T) {
	mock := &MockStore{}
	store := NewStore(mock)

	first, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	second, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("Second Bootstrap failed: %v", err)
	}

	if first.Token != second.Token {
		t.Errorf("Expected the same token, got %q and %q", first.Token, second.Token)
	}
	if mock.saveCalls != 1 {
		t.Errorf("Second bootstrap should not persist again, got %d saves", mock.saveCalls)
	}
}

func TestBootstrap_LoadsExistingIdentity(t *testing.T) {
	mock := &MockStore{
		ident: &models.PlayerIdentity{
			Token:       "existing_token_abc",
			DisplayName: "Stored-Name-1234",
			AvatarID:    "av_7",
		},
	}
	store := NewStore(mock)

	ident, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap should not return an error, but got: %v", err)
	}

	if ident.Token != "existing_token_abc" {
		t.Errorf("Expected the stored token, got %q", ident.Token)
	}
	if mock.saveCalls != 0 {
		t.Errorf("Loading an existing identity should not save, got %d saves", mock.saveCalls)
	}
}

func TestApplyRename_PersistsConfirmedName(t *testing.T) {
	mock := &MockStore{}
	store := NewStore(mock)
	store.Bootstrap()

	if err := store.ApplyRename("New-Name-42"); err != nil {
		t.Fatalf("ApplyRename should not return an error, but got: %v", err)
	}

	if store.Identity().DisplayName != "New-Name-42" {
		t.Errorf("Expected cached name to update, got %q", store.Identity().DisplayName)
	}
	if mock.ident.DisplayName != "New-Name-42" {
		t.Errorf("Expected persisted name to update, got %q", mock.ident.DisplayName)
	}
}

func TestApplyAvatar_PersistsConfirmedAvatar(t *testing.T) {
	mock := &MockStore{}
	store := NewStore(mock)
	store.Bootstrap()

	if err := store.ApplyAvatar("av_3"); err != nil {
		t.Fatalf("ApplyAvatar should not return an error, but got: %v", err)
	}

	if store.Identity().AvatarID != "av_3" {
		t.Errorf("Expected cached avatar to update, got %q", store.Identity().AvatarID)
	}
	if mock.ident.AvatarID != "av_3" {
		t.Errorf("Expected persisted avatar to update, got %q", mock.ident.AvatarID)
	}
}

func TestSetAuthenticated(t *testing.T) {
	store := NewStore(&MockStore{})
	store.Bootstrap()

	if store.Authenticated() {
		t.Error("A fresh store should not be authenticated")
	}

	store.SetAuthenticated(true)
	if !store.Authenticated() {
		t.Error("Expected authenticated after SetAuthenticated(true)")
	}

	// An identity conflict drops the flag but keeps the identity.
	token := store.Identity().Token
	store.SetAuthenticated(false)
	if store.Authenticated() {
		t.Error("Expected unauthenticated after SetAuthenticated(false)")
	}
	if store.Identity().Token != token {
		t.Error("The identity itself must survive an authentication drop")
	}
}
