// identity/identity.go
package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/persistence"
)

// Token 参数：宽字母表 + 固定长度，碰撞概率可忽略，无需集中分配
const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 24

	defaultAvatarID = "av_default"
)

var nameAdjectives = []string{"Brave", "Clever", "Swift", "Mighty", "Bold"}
var nameAnimals = []string{"Tiger", "Falcon", "Wolf", "Eagle", "Lion"}

// Store owns the locally cached {token, display name, avatar} triple.
// Mutations happen only through server-confirmed Apply* calls; the
// request path never writes here, so a rejected rename cannot leave a
// stale name behind after a restart.
type Store struct {
	mu            sync.RWMutex
	ident         *models.PlayerIdentity
	authenticated bool
	store         persistence.Store
}

func NewStore(store persistence.Store) *Store {
	return &Store{store: store}
}

// Bootstrap 读取持久化的身份；不存在时生成并先持久化再使用。
// 同一进程内的第二次调用返回同一身份。
func (s *Store) Bootstrap() (models.PlayerIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ident != nil {
		return *s.ident, nil
	}

	ident, err := s.store.LoadIdentity()
	if err == nil {
		s.ident = ident
		return *s.ident, nil
	}
	if err != persistence.ErrRecordNotFound {
		return models.PlayerIdentity{}, err
	}

	token, err := generateToken()
	if err != nil {
		return models.PlayerIdentity{}, err
	}
	name, err := generateDisplayName()
	if err != nil {
		return models.PlayerIdentity{}, err
	}

	s.ident = &models.PlayerIdentity{
		Token:       token,
		DisplayName: name,
		AvatarID:    defaultAvatarID,
	}
	if err := s.store.SaveIdentity(s.ident); err != nil {
		s.ident = nil
		return models.PlayerIdentity{}, err
	}

	logger.Log.Infof("Generated new player identity %s (%s)", token, name)
	return *s.ident, nil
}

// Identity 返回当前缓存的身份副本
func (s *Store) Identity() models.PlayerIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ident == nil {
		return models.PlayerIdentity{}
	}
	return *s.ident
}

// ApplyRename persists a server-confirmed display name.
func (s *Store) ApplyRename(confirmed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident == nil {
		return fmt.Errorf("identity not bootstrapped")
	}
	s.ident.DisplayName = confirmed
	return s.store.SaveIdentity(s.ident)
}

// ApplyAvatar persists a server-confirmed avatar change.
func (s *Store) ApplyAvatar(confirmed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident == nil {
		return fmt.Errorf("identity not bootstrapped")
	}
	s.ident.AvatarID = confirmed
	return s.store.SaveIdentity(s.ident)
}

// SetAuthenticated flips the handshake result. On an identity conflict
// (token bound to another live session) the identity itself is kept
// and only this flag drops until a fresh handshake succeeds.
func (s *Store) SetAuthenticated(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = ok
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func generateToken() (string, error) {
	buf := make([]byte, tokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func generateDisplayName() (string, error) {
	pick := func(list []string) (string, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
		if err != nil {
			return "", err
		}
		return list[n.Int64()], nil
	}

	adj, err := pick(nameAdjectives)
	if err != nil {
		return "", err
	}
	animal, err := pick(nameAnimals)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%d", adj, animal, n.Int64()+1000), nil
}
