// session/intents.go
package session

import (
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/table"
)

// Intent is a user-triggered action funneled into the controller's
// loop. Intents and inbound pushes are processed one at a time by the
// same goroutine; nothing else mutates session state.
type Intent interface{ isIntent() }

// SelectMode 主界面进入模式选择
type SelectMode struct{}

// BackToMain 从模式选择返回主界面
type BackToMain struct{}

// CreateRoom 建房（乐观切换到大厅）
type CreateRoom struct {
	Kind         models.GameKind
	Mode         string // "ai" or "online"
	WinsRequired int
	Capacity     int
}

// JoinRoom 加入指定房间
type JoinRoom struct {
	RoomID string
}

// OpenDeepLink joins a room referenced by a shareable URL. The room is
// re-validated against the visible-rooms table first; a stale link
// fails silently back to idle.
type OpenDeepLink struct {
	URL string
}

// ToggleReady 乐观翻转准备状态
type ToggleReady struct{}

// SubmitMove 提交行动（rps 出招或 connect4 落子）
type SubmitMove struct {
	Move   string
	Column *int
}

// Quit leaves the current room (lobby or in-progress) or, from the
// finished phase, returns to the menu keeping the archive.
type Quit struct{}

// Rename 请求改名，确认推送到达前不落盘
type Rename struct {
	Name string
}

// ChangeAvatar 请求换头像，确认推送到达前不落盘
type ChangeAvatar struct {
	AvatarID string
}

// Spectate 切换观战目标，空 RoomID 表示退出观战
type Spectate struct {
	RoomID string
}

// UpdateOptions 调整房间局数/容量（仅等待状态）
type UpdateOptions struct {
	WinsRequired *int
	Capacity     *int
}

// ManageAISlots 增减AI占位
type ManageAISlots struct {
	Delta int
}

// SortRooms 房间表换列排序
type SortRooms struct {
	Key string
	Dir table.Direction
}

// SortLeaderboard 排行榜换列排序
type SortLeaderboard struct {
	Key string
	Dir table.Direction
}

func (SelectMode) isIntent()      {}
func (BackToMain) isIntent()      {}
func (CreateRoom) isIntent()      {}
func (JoinRoom) isIntent()        {}
func (OpenDeepLink) isIntent()    {}
func (ToggleReady) isIntent()     {}
func (SubmitMove) isIntent()      {}
func (Quit) isIntent()            {}
func (Rename) isIntent()          {}
func (ChangeAvatar) isIntent()    {}
func (Spectate) isIntent()        {}
func (UpdateOptions) isIntent()   {}
func (ManageAISlots) isIntent()   {}
func (SortRooms) isIntent()       {}
func (SortLeaderboard) isIntent() {}
