// room/room.go
package room

import (
	"github.com/wfunc/gameclient/history"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/network"
)

// PlayerRoomState 房间内一名占位者（玩家或AI）的影子状态
type PlayerRoomState struct {
	Token  string
	Team   string
	IsAI   bool
	Wins   int
	Losses int
	Ready  models.ReadyStatus
	Moved  bool
}

// Round 一个计分回合。rps 回合可包含多个平局重赛步；connect4 的
// 整个落子日志是一个增长中的回合。
type Round struct {
	WinnerToken string
	Steps       []string
	Moves       []int
}

// Room 是服务端房间的本地影子。Players 的顺序就是加入顺序，编码
// 快照中的 winnerIndex 以它为准。
type Room struct {
	ID           string
	Kind         models.GameKind
	Status       models.RoomStatus
	WinsRequired int
	Capacity     int
	Players      []*PlayerRoomState
	Rounds       []Round
	Spectators   map[string]struct{}
}

// FromWire 从推送的线上形式重建影子房间
func FromWire(info network.RoomInfo) *Room {
	r := &Room{
		ID:           info.RoomID,
		Kind:         info.Kind,
		Status:       info.Status,
		WinsRequired: info.WinsRequired,
		Capacity:     info.Capacity,
		Spectators:   make(map[string]struct{}),
	}
	for _, p := range info.Players {
		r.Players = append(r.Players, &PlayerRoomState{
			Token:  p.Token,
			Team:   p.Team,
			IsAI:   p.IsAI,
			Wins:   p.Wins,
			Losses: p.Losses,
			Ready:  p.Ready,
			Moved:  p.Moved,
		})
	}
	for _, token := range info.Spectators {
		r.Spectators[token] = struct{}{}
	}
	return r
}

// Player 按 token 查找占位者
func (r *Room) Player(token string) (*PlayerRoomState, bool) {
	for _, p := range r.Players {
		if p.Token == token {
			return p, true
		}
	}
	return nil, false
}

// RemovePlayer 移除占位者，回合日志保留
func (r *Room) RemovePlayer(token string) {
	for i, p := range r.Players {
		if p.Token == token {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}

// SeatAvailable 等待中且未满员时可加入
func (r *Room) SeatAvailable() bool {
	return r.Status == models.RoomWaiting && len(r.Players) < r.Capacity
}

// Snapshot converts the shadow room into its codec form, resolving
// winner tokens back to roster indices.
func (r *Room) Snapshot() *history.Snapshot {
	snap := &history.Snapshot{Kind: r.Kind}

	for _, p := range r.Players {
		snap.Players = append(snap.Players, history.PlayerEntry{
			Token:  p.Token,
			Team:   p.Team,
			IsAI:   p.IsAI,
			Wins:   p.Wins,
			Losses: p.Losses,
		})
	}

	for i, round := range r.Rounds {
		encoded := history.Round{
			Number:      i + 1,
			WinnerIndex: -1,
			WinnerToken: round.WinnerToken,
			Steps:       round.Steps,
			Moves:       round.Moves,
		}
		for idx, p := range r.Players {
			if p.Token == round.WinnerToken && round.WinnerToken != "" {
				encoded.WinnerIndex = idx
				break
			}
		}
		snap.Rounds = append(snap.Rounds, encoded)
	}

	return snap
}
