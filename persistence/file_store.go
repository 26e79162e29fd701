// persistence/file_store.go
package persistence

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/wfunc/gameclient/models"
)

// FileStore 默认的本地 JSON 文件存储
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileState struct {
	Identity *models.PlayerIdentity `json:"identity,omitempty"`
	Archives []models.RoomArchive   `json:"archives,omitempty"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (*fileState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{}, nil
		}
		return nil, err
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *FileStore) save(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// SaveIdentity 保存玩家身份
func (s *FileStore) SaveIdentity(ident *models.PlayerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	copied := *ident
	state.Identity = &copied
	return s.save(state)
}

// LoadIdentity 加载玩家身份
func (s *FileStore) LoadIdentity() (*models.PlayerIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	if state.Identity == nil {
		return nil, ErrRecordNotFound
	}
	copied := *state.Identity
	return &copied, nil
}

// SaveRoomArchive 追加一条已结束房间的归档
func (s *FileStore) SaveRoomArchive(archive *models.RoomArchive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.Archives = append(state.Archives, *archive)
	return s.save(state)
}

// LoadRoomArchives 按游戏类型读取归档，kind 为空时返回全部
func (s *FileStore) LoadRoomArchives(kind models.GameKind) ([]models.RoomArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	if kind == "" {
		return state.Archives, nil
	}

	var archives []models.RoomArchive
	for _, a := range state.Archives {
		if a.GameKind == kind {
			archives = append(archives, a)
		}
	}
	return archives, nil
}

func (s *FileStore) Close() error {
	return nil
}
