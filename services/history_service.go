// services/history_service.go
package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wfunc/gameclient/history"
	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/persistence"
)

// DecodedGame 一局已解码的历史对局
type DecodedGame struct {
	RoomID   string
	Snapshot *history.Snapshot
}

// HistoryService answers the auxiliary read-only queries over the
// server's REST API (avatar catalog, player stats, stored game
// history) and reads back locally archived games. These are plain
// request/response calls, not pushes.
type HistoryService struct {
	apiURL string
	store  persistence.Store
	client *http.Client
}

func NewHistoryService(apiURL string, store persistence.Store) *HistoryService {
	return &HistoryService{
		apiURL: apiURL,
		store:  store,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchAvatarCatalog 拉取头像目录
func (s *HistoryService) FetchAvatarCatalog() ([]models.AvatarInfo, error) {
	var catalog []models.AvatarInfo
	if err := s.getJSON(s.apiURL+"/avatars", &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// FetchPlayerStats 拉取某玩家的统计投影
func (s *HistoryService) FetchPlayerStats(token string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	endpoint := fmt.Sprintf("%s/stats?token=%s", s.apiURL, url.QueryEscape(token))
	if err := s.getJSON(endpoint, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FetchRoomHistory fetches codec-encoded snapshots of stored games and
// decodes them. A malformed snapshot degrades only that one game: it
// is logged, skipped and the rest of the listing survives.
func (s *HistoryService) FetchRoomHistory(kind models.GameKind) ([]DecodedGame, error) {
	var archives []models.RoomArchive
	endpoint := fmt.Sprintf("%s/history?kind=%s", s.apiURL, url.QueryEscape(string(kind)))
	if err := s.getJSON(endpoint, &archives); err != nil {
		return nil, err
	}
	return s.decodeAll(archives), nil
}

// LocalArchives 读取并解码本地归档
func (s *HistoryService) LocalArchives(kind models.GameKind) ([]DecodedGame, error) {
	archives, err := s.store.LoadRoomArchives(kind)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(archives), nil
}

func (s *HistoryService) decodeAll(archives []models.RoomArchive) []DecodedGame {
	games := make([]DecodedGame, 0, len(archives))
	for _, a := range archives {
		snap, err := history.Decode(a.GameKind, a.Snapshot)
		if err != nil {
			logger.Log.Warnf("Skipping malformed history for room %s: %v", a.RoomID, err)
			continue
		}
		games = append(games, DecodedGame{RoomID: a.RoomID, Snapshot: snap})
	}
	return games
}

func (s *HistoryService) getJSON(endpoint string, out any) error {
	resp, err := s.client.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
