// models/models.go
package models

import (
	"time"
)

// GameKind 游戏类型
type GameKind string

const (
	GameRPS      GameKind = "rps"
	GameConnect4 GameKind = "connect4"
)

// RoomStatus 房间状态
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomRunning RoomStatus = "running"
)

// ReadyStatus 玩家准备状态
type ReadyStatus string

const (
	ReadyWaiting ReadyStatus = "waiting"
	ReadyReady   ReadyStatus = "ready"
)

// Move codes as they appear in encoded round steps. A space means the
// player has not moved in that step yet.
const (
	MoveRock     = "R"
	MovePaper    = "P"
	MoveScissors = "S"
	MoveNone     = " "
)

// PlayerIdentity 玩家身份（本地持久化）
type PlayerIdentity struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
	AvatarID    string `json:"avatar_id"`
}

// LeaderboardEntry 排行榜条目，由服务端统计投影重建
type LeaderboardEntry struct {
	Token       string  `json:"token"`
	DisplayName string  `json:"display_name"`
	AvatarID    string  `json:"avatar_id"`
	WinRate     float64 `json:"win_rate"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Draws      int `json:"draws"`
	Losses     int `json:"losses"`
}

// AvatarInfo 头像目录条目
type AvatarInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomArchive 已结束房间的归档记录，快照为编码后的文本
type RoomArchive struct {
	RoomID     string    `json:"room_id"`
	GameKind   GameKind  `json:"game_kind"`
	Snapshot   string    `json:"snapshot"`
	FinishedAt time.Time `json:"finished_at"`
}

// SessionView is the read-only projection handed to the presentation
// layer. It is rebuilt after every applied event; the presentation side
// never mutates it.
type SessionView struct {
	Phase          string           `json:"phase"`
	Identity       PlayerIdentity   `json:"identity"`
	Authenticated  bool             `json:"authenticated"`
	CurrentRoomID  string           `json:"current_room_id"`
	SpectatingRoom string           `json:"spectating_room"`
	Ready          bool             `json:"ready"`
	Rooms          []map[string]any `json:"rooms"`
	Leaderboard    []map[string]any `json:"leaderboard"`
	ShareURL       string           `json:"share_url"`
	Warning        string           `json:"warning"`
}
