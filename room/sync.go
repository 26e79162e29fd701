// room/sync.go
package room

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/wfunc/gameclient/history"
	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/network"
	"github.com/wfunc/gameclient/table"
)

type sortConfig struct {
	key string
	dir table.Direction
}

// Synchronizer is the single writable owner of room shadow state: the
// room the local player occupies, the visible-rooms table, the
// spectate target, and the archive of finished rooms. It is mutated
// only from the session controller's goroutine; readers get copies
// through the published view, never this struct.
type Synchronizer struct {
	sender   Sender
	observer Observer

	current    string
	spectating string
	rooms      map[string]*Room
	archives   map[string]*models.RoomArchive

	leaderboard []models.LeaderboardEntry

	roomsSort       sortConfig
	leaderboardSort sortConfig
	roomsView       []table.Row
	leaderboardView []table.Row
}

func NewSynchronizer(sender Sender, observer Observer) *Synchronizer {
	return &Synchronizer{
		sender:   sender,
		observer: observer,
		rooms:    make(map[string]*Room),
		archives: make(map[string]*models.RoomArchive),
		// 默认排序沿用原产品：房间表按ID升序，排行榜按胜率降序
		roomsSort:       sortConfig{key: "room_id", dir: table.Asc},
		leaderboardSort: sortConfig{key: "win_rate", dir: table.Desc},
	}
}

func (s *Synchronizer) Current() string    { return s.current }
func (s *Synchronizer) Spectating() string { return s.spectating }
func (s *Synchronizer) Len() int           { return len(s.rooms) }

// CurrentRoom 返回当前房间的影子，可能为 nil（确认尚未到达）
func (s *Synchronizer) CurrentRoom() *Room {
	if s.current == "" {
		return nil
	}
	return s.rooms[s.current]
}

// Room 按ID查找影子房间
func (s *Synchronizer) Room(id string) (*Room, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

// ClearCurrent drops the current-room pointer. The shadow entry and
// any archive stay behind for later review.
func (s *Synchronizer) ClearCurrent() {
	s.current = ""
}

// ApplyRoomCreated 服务端确认建房，当前房间指针指向它
func (s *Synchronizer) ApplyRoomCreated(roomID string) {
	s.current = roomID
	if _, ok := s.rooms[roomID]; !ok {
		s.rooms[roomID] = &Room{
			ID:         roomID,
			Status:     models.RoomWaiting,
			Spectators: make(map[string]struct{}),
		}
	}
	logger.Log.Infof("Room %s created, now current", roomID)
}

// ApplyRoomJoined 服务端确认入房。快照没到之前就建占位影子，
// 否则针对本房间的推送会走未知房间的丢弃路径。
func (s *Synchronizer) ApplyRoomJoined(roomID string) {
	s.current = roomID
	if _, ok := s.rooms[roomID]; !ok {
		s.rooms[roomID] = &Room{
			ID:         roomID,
			Status:     models.RoomWaiting,
			Spectators: make(map[string]struct{}),
		}
	}
	logger.Log.Infof("Joined room %s", roomID)
}

// ApplyFullRoomTable replaces the visible-rooms listing wholesale and
// re-sorts it with the previously selected key/direction. Returns
// whether the sorted view differs from the previous one.
func (s *Synchronizer) ApplyFullRoomTable(rooms map[string]network.RoomInfo) bool {
	replaced := make(map[string]*Room, len(rooms))
	for id, info := range rooms {
		replaced[id] = FromWire(info)
	}
	// 当前房间和观战房间即使不在快照里也要保留影子
	for _, keep := range []string{s.current, s.spectating} {
		if keep == "" {
			continue
		}
		if _, ok := replaced[keep]; !ok {
			if old, ok := s.rooms[keep]; ok {
				replaced[keep] = old
			}
		}
	}
	s.rooms = replaced

	// 行是全新构建的，changed 必须对比上一份视图而不是排序前后
	view, _ := table.Sort(s.roomRows(), s.roomsSort.key, s.roomsSort.dir)
	changed := !reflect.DeepEqual(view, s.roomsView)
	s.roomsView = view
	return changed
}

// ApplyLeaderboard 全量替换排行榜投影并重排，返回视图是否变了
func (s *Synchronizer) ApplyLeaderboard(entries []models.LeaderboardEntry) bool {
	s.leaderboard = entries
	view, _ := table.Sort(s.leaderboardRows(), s.leaderboardSort.key, s.leaderboardSort.dir)
	changed := !reflect.DeepEqual(view, s.leaderboardView)
	s.leaderboardView = view
	return changed
}

// SortRooms re-sorts the room listing by a newly selected column.
func (s *Synchronizer) SortRooms(key string, dir table.Direction) ([]table.Row, bool) {
	s.roomsSort = sortConfig{key: key, dir: dir}
	view, changed := table.Sort(s.roomsView, key, dir)
	s.roomsView = view
	return view, changed
}

// SortLeaderboard re-sorts the leaderboard by a newly selected column.
func (s *Synchronizer) SortLeaderboard(key string, dir table.Direction) ([]table.Row, bool) {
	s.leaderboardSort = sortConfig{key: key, dir: dir}
	view, changed := table.Sort(s.leaderboardView, key, dir)
	s.leaderboardView = view
	return view, changed
}

func (s *Synchronizer) RoomsView() []table.Row       { return s.roomsView }
func (s *Synchronizer) LeaderboardView() []table.Row { return s.leaderboardView }

// ApplyGameStarted 用开局推送里的权威房间状态覆盖影子
func (s *Synchronizer) ApplyGameStarted(info network.RoomInfo) bool {
	if _, ok := s.rooms[info.RoomID]; !ok && info.RoomID != s.current && info.RoomID != s.spectating {
		s.drop("game_started", info.RoomID)
		return false
	}
	started := FromWire(info)
	started.Status = models.RoomRunning
	if old, ok := s.rooms[info.RoomID]; ok {
		started.Rounds = old.Rounds
	}
	s.rooms[info.RoomID] = started
	return true
}

// ApplyRoundResult appends a round delta to the matching room's log.
// The log is append-only and server order is authoritative; rounds are
// never reordered locally. Returns (gameOver, applied).
func (s *Synchronizer) ApplyRoundResult(push network.RoundResultPush) (bool, bool) {
	r, ok := s.rooms[push.RoomID]
	if !ok {
		s.drop("round_result", push.RoomID)
		return false, false
	}

	if push.Round > len(r.Rounds) || len(r.Rounds) == 0 {
		r.Rounds = append(r.Rounds, Round{})
	}
	round := &r.Rounds[len(r.Rounds)-1]

	if push.Step != "" {
		round.Steps = append(round.Steps, push.Step)
	}
	if push.Column != nil {
		round.Moves = append(round.Moves, *push.Column)
	}
	if push.RoundOver {
		round.WinnerToken = push.Winner
		if winner, ok := r.Player(push.Winner); ok {
			winner.Wins++
		}
	}
	if s.observer != nil {
		s.observer.RoundAppended()
	}

	if push.GameOver {
		s.archive(r)
		return true, true
	}
	return false, true
}

// archive freezes a finished room as an encoded snapshot; from here on
// it is reviewed through the codec, not the live shadow.
func (s *Synchronizer) archive(r *Room) {
	s.archives[r.ID] = &models.RoomArchive{
		RoomID:     r.ID,
		GameKind:   r.Kind,
		Snapshot:   history.Encode(r.Snapshot()),
		FinishedAt: time.Now(),
	}
}

// Archive 取出某房间的归档
func (s *Synchronizer) Archive(roomID string) (*models.RoomArchive, bool) {
	a, ok := s.archives[roomID]
	return a, ok
}

// ApplyPlayerLeft 移除离开玩家的占位，回合日志保留
func (s *Synchronizer) ApplyPlayerLeft(roomID, token string) bool {
	r, ok := s.rooms[roomID]
	if !ok {
		s.drop("player_left", roomID)
		return false
	}
	r.RemovePlayer(token)
	return true
}

// ApplyRoomOptions 只在等待状态下允许改动局数/容量
func (s *Synchronizer) ApplyRoomOptions(push network.RoomOptionsChangedPush) bool {
	r, ok := s.rooms[push.RoomID]
	if !ok {
		s.drop("room_options_changed", push.RoomID)
		return false
	}
	if r.Status != models.RoomWaiting {
		return false
	}
	if push.WinsRequired != nil {
		r.WinsRequired = *push.WinsRequired
	}
	if push.Capacity != nil {
		r.Capacity = *push.Capacity
	}
	return true
}

// ApplySpectate switches the single spectate target. Switching always
// unsubscribes the previous target before subscribing the new one;
// an empty roomID just unsubscribes.
func (s *Synchronizer) ApplySpectate(roomID string) error {
	if roomID == s.spectating {
		return nil
	}

	if s.spectating != "" {
		if err := s.sendSpectate(network.MsgTypeUnsubscribeSpectate, s.spectating); err != nil {
			return err
		}
		s.spectating = ""
	}

	if roomID != "" {
		if err := s.sendSpectate(network.MsgTypeSubscribeSpectate, roomID); err != nil {
			return err
		}
		s.spectating = roomID
	}
	return nil
}

func (s *Synchronizer) sendSpectate(msgID uint16, roomID string) error {
	data, err := json.Marshal(network.SpectateReq{RoomID: roomID})
	if err != nil {
		return err
	}
	return s.sender.Send(msgID, data)
}

// drop 处理引用未知房间的事件：UI导航和网络投递之间的竞态，静默丢弃
func (s *Synchronizer) drop(event, roomID string) {
	if s.observer != nil {
		s.observer.EventDropped()
	}
	logger.Log.Debugf("Dropped %s for unknown room %s", event, roomID)
}

func (s *Synchronizer) roomRows() []table.Row {
	rows := make([]table.Row, 0, len(s.rooms))
	for _, r := range s.rooms {
		names := make([]string, 0, len(r.Players))
		for _, p := range r.Players {
			names = append(names, p.Token)
		}
		rows = append(rows, table.Row{
			"room_id":     r.ID,
			"kind":        string(r.Kind),
			"status":      string(r.Status),
			"num_players": len(r.Players),
			"capacity":    r.Capacity,
			"players":     names,
		})
	}
	return rows
}

func (s *Synchronizer) leaderboardRows() []table.Row {
	rows := make([]table.Row, 0, len(s.leaderboard))
	for _, e := range s.leaderboard {
		rows = append(rows, table.Row{
			"token":    e.Token,
			"name":     e.DisplayName,
			"avatar":   e.AvatarID,
			"win_rate": e.WinRate,
			"wins":     e.Wins,
			"losses":   e.Losses,
		})
	}
	return rows
}
