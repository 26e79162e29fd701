// network/messages.go
package network

import (
	"github.com/wfunc/gameclient/models"
)

// 请求消息体

type SetIdentityReq struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
	AvatarID    string `json:"avatar_id"`
}

type RenameReq struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type SetAvatarReq struct {
	AvatarID string `json:"avatar_id"`
}

type CreateRoomReq struct {
	Kind         models.GameKind `json:"kind"`
	Mode         string          `json:"mode"` // "ai" or "online"
	WinsRequired int             `json:"wins_required"`
	Capacity     int             `json:"capacity"`
}

type JoinRoomReq struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomReq struct {
	RoomID string `json:"room_id"`
}

type SetReadyReq struct {
	RoomID string             `json:"room_id"`
	Status models.ReadyStatus `json:"status"`
}

type SubmitMoveReq struct {
	RoomID string `json:"room_id"`
	Move   string `json:"move,omitempty"`
	Column *int   `json:"column,omitempty"`
}

type UpdateRoomOptionsReq struct {
	RoomID       string `json:"room_id"`
	WinsRequired *int   `json:"wins_required,omitempty"`
	Capacity     *int   `json:"capacity,omitempty"`
}

type ManageAISlotsReq struct {
	RoomID string `json:"room_id"`
	Delta  int    `json:"delta"`
}

type SpectateReq struct {
	RoomID string `json:"room_id"`
}

// 推送消息体

type IdentityConfirmedPush struct {
	Conflict    bool   `json:"conflict"`
	DisplayName string `json:"display_name"`
	AvatarID    string `json:"avatar_id"`
}

type RenameRejectedPush struct {
	Reason string `json:"reason"`
}

type RoomCreatedPush struct {
	RoomID string `json:"room_id"`
}

type RoomJoinedPush struct {
	RoomID string `json:"room_id"`
}

type RoomOptionsChangedPush struct {
	RoomID       string `json:"room_id"`
	WinsRequired *int   `json:"wins_required,omitempty"`
	Capacity     *int   `json:"capacity,omitempty"`
}

// PlayerInfo is the wire form of one room occupant.
type PlayerInfo struct {
	Token  string             `json:"token"`
	Team   string             `json:"team"`
	IsAI   bool               `json:"is_ai"`
	Wins   int                `json:"wins"`
	Losses int                `json:"losses"`
	Ready  models.ReadyStatus `json:"ready"`
	Moved  bool               `json:"moved"`
}

// RoomInfo is the wire form of a room. Player order is join order and
// is significant: encoded round winners index into it.
type RoomInfo struct {
	RoomID       string            `json:"room_id"`
	Kind         models.GameKind   `json:"kind"`
	Status       models.RoomStatus `json:"status"`
	WinsRequired int               `json:"wins_required"`
	Capacity     int               `json:"capacity"`
	Players      []PlayerInfo      `json:"players"`
	Spectators   []string          `json:"spectators,omitempty"`
}

type GameStartedPush struct {
	Room RoomInfo `json:"room"`
}

// RoundResultPush carries one round delta: an rps step or a connect4
// column, a winner when the round closed, and the game-over flag.
type RoundResultPush struct {
	RoomID    string `json:"room_id"`
	Round     int    `json:"round"` // 1-based
	Step      string `json:"step,omitempty"`
	Column    *int   `json:"column,omitempty"`
	Winner    string `json:"winner,omitempty"`
	RoundOver bool   `json:"round_over"`
	GameOver  bool   `json:"game_over"`
}

type PlayerLeftPush struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

type RoomUnavailablePush struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type FullTableSnapshotPush struct {
	Kind        string                    `json:"kind"` // "rooms" or "leaderboard"
	Rooms       map[string]RoomInfo       `json:"rooms,omitempty"`
	Leaderboard []models.LeaderboardEntry `json:"leaderboard,omitempty"`
}

type WarningPush struct {
	Message string `json:"message"`
}

type FatalErrorPush struct {
	Message string `json:"message"`
}
