package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/persistence"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/avatars", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.AvatarInfo{
			{ID: "av_1", Name: "Knight"},
			{ID: "av_2", Name: "Rogue"},
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "me" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(models.PlayerStats{TotalGames: 10, Wins: 6, Draws: 1, Losses: 3})
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.RoomArchive{
			{RoomID: "good", GameKind: models.GameRPS, Snapshot: "p1;A,F,1,0|p2;B,F,0,1$0;RS"},
			{RoomID: "broken", GameKind: models.GameRPS, Snapshot: "no separator here"},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchAvatarCatalog(t *testing.T) {
	server := newAPIServer(t)
	svc := NewHistoryService(server.URL, nil)

	catalog, err := svc.FetchAvatarCatalog()
	if err != nil {
		t.Fatalf("FetchAvatarCatalog should not return an error, but got: %v", err)
	}
	if len(catalog) != 2 || catalog[0].ID != "av_1" {
		t.Errorf("Catalog decoded incorrectly: %v", catalog)
	}
}

func TestFetchPlayerStats(t *testing.T) {
	server := newAPIServer(t)
	svc := NewHistoryService(server.URL, nil)

	stats, err := svc.FetchPlayerStats("me")
	if err != nil {
		t.Fatalf("FetchPlayerStats should not return an error, but got: %v", err)
	}
	if stats.TotalGames != 10 || stats.Wins != 6 {
		t.Errorf("Stats decoded incorrectly: %+v", stats)
	}
}

func TestFetchPlayerStats_BadStatus(t *testing.T) {
	server := newAPIServer(t)
	svc := NewHistoryService(server.URL, nil)

	if _, err := svc.FetchPlayerStats("unknown"); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

func TestFetchRoomHistory_SkipsMalformed(t *testing.T) {
	server := newAPIServer(t)
	svc := NewHistoryService(server.URL, nil)

	games, err := svc.FetchRoomHistory(models.GameRPS)
	if err != nil {
		t.Fatalf("FetchRoomHistory should not return an error, but got: %v", err)
	}

	// 坏快照只影响它自己那局
	if len(games) != 1 {
		t.Fatalf("Expected 1 decodable game, got %d", len(games))
	}
	if games[0].RoomID != "good" {
		t.Errorf("Expected the good game to survive, got %q", games[0].RoomID)
	}
	if len(games[0].Snapshot.Rounds) != 1 || games[0].Snapshot.Rounds[0].WinnerToken != "p1" {
		t.Errorf("Game decoded incorrectly: %+v", games[0].Snapshot)
	}
}

func TestLocalArchives(t *testing.T) {
	store := persistence.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	store.SaveRoomArchive(&models.RoomArchive{
		RoomID: "r1", GameKind: models.GameRPS, Snapshot: "p1;A,F,1,0|p2;B,F,0,1$0;RS",
	})
	store.SaveRoomArchive(&models.RoomArchive{
		RoomID: "r2", GameKind: models.GameConnect4, Snapshot: "p1;A,F,1,0|p2;B,F,0,1$0;3,4",
	})

	svc := NewHistoryService("http://unused", store)

	games, err := svc.LocalArchives(models.GameRPS)
	if err != nil {
		t.Fatalf("LocalArchives should not return an error, but got: %v", err)
	}
	if len(games) != 1 || games[0].RoomID != "r1" {
		t.Errorf("Kind filter returned wrong games: %v", games)
	}
}
