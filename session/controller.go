// session/controller.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/gameclient/broadcast"
	"github.com/wfunc/gameclient/history"
	"github.com/wfunc/gameclient/identity"
	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/monitor"
	"github.com/wfunc/gameclient/network"
	"github.com/wfunc/gameclient/persistence"
	"github.com/wfunc/gameclient/room"
	"github.com/wfunc/gameclient/state"
)

var ErrNotConnected = errors.New("not connected")

// Controller sequences the session through its phases and is the only
// writer of shadow state. All mutation happens on the Run goroutine:
// user intents and inbound pushes are drained from two channels and
// applied strictly one at a time. Outbound requests are fire-and-
// forget; waiting for a confirmation is an optimistic phase, never a
// blocked call.
type Controller struct {
	machine *state.Machine
	rooms   *room.Synchronizer
	ident   *identity.Store
	views   broadcast.Broadcaster
	mon     *monitor.Monitor
	store   persistence.Store
	origin  string

	conn      network.Connection
	connMutex sync.RWMutex
	sessionID string

	intents chan Intent
	inbound chan *network.Packet
	done    chan struct{}

	// 乐观状态，权威快照到达后以服务端为准
	optimisticReady bool
	pendingName     string
	pendingAvatar   string
	pendingLink     string
	tableSeen       bool
	warning         string

	viewMutex sync.RWMutex
	lastView  models.SessionView
}

func NewController(ident *identity.Store, views broadcast.Broadcaster, mon *monitor.Monitor,
	store persistence.Store, origin string) *Controller {

	c := &Controller{
		machine: state.NewSessionMachine(),
		ident:   ident,
		views:   views,
		mon:     mon,
		store:   store,
		origin:  origin,
		intents: make(chan Intent, 64),
		inbound: make(chan *network.Packet, 64),
		done:    make(chan struct{}),
	}

	var observer room.Observer
	if mon != nil {
		observer = mon
	}
	c.rooms = room.NewSynchronizer(c, observer)
	return c
}

// Send implements room.Sender; every outbound request goes through the
// live connection.
func (c *Controller) Send(msgID uint16, data []byte) error {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Send(msgID, data)
}

// Do 将用户意图排入会话循环
func (c *Controller) Do(intent Intent) {
	select {
	case c.intents <- intent:
	case <-c.done:
	}
}

// Phase 返回当前阶段
func (c *Controller) Phase() state.Phase {
	return c.machine.Current()
}

// View 返回最近发布的会话视图
func (c *Controller) View() models.SessionView {
	c.viewMutex.RLock()
	defer c.viewMutex.RUnlock()
	return c.lastView
}

// DecodedArchive decodes a finished room's archived snapshot. A
// malformed snapshot degrades only that room's history view; the
// session itself is unaffected.
func (c *Controller) DecodedArchive(roomID string) (*history.Snapshot, error) {
	archive, ok := c.rooms.Archive(roomID)
	if !ok {
		return nil, fmt.Errorf("no archive for room %s", roomID)
	}
	snap, err := history.Decode(archive.GameKind, archive.Snapshot)
	if err != nil {
		if c.mon != nil {
			c.mon.IncDecodeFailures()
		}
		logger.Log.Warnf("Archived snapshot for room %s is malformed: %v", roomID, err)
		return nil, err
	}
	return snap, nil
}

// Run attaches a connection, performs the identity handshake and
// processes events until the connection drops or Shutdown is called.
// On a dropped connection the session resets to idle; ephemeral shadow
// state is rebuilt from pushes after the caller reconnects.
func (c *Controller) Run(conn network.Connection) error {
	c.connMutex.Lock()
	c.conn = conn
	c.connMutex.Unlock()
	c.sessionID = uuid.New().String()

	logger.Log.Infof("Session %s connected to %s", c.sessionID, conn.RemoteAddr())

	if err := c.handshake(); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go c.readLoop(conn, readErr)

	for {
		select {
		case <-c.done:
			return nil
		case err := <-readErr:
			logger.Log.Infof("Session %s connection lost: %v", c.sessionID, err)
			c.reset("")
			c.publish()
			return err
		case packet := <-c.inbound:
			started := time.Now()
			notify := c.handlePacket(packet)
			if c.mon != nil {
				c.mon.ObserveEventLatency(time.Since(started))
			}
			if notify {
				c.publish()
			}
		case intent := <-c.intents:
			// 没改变可见状态的事件不重新通知展示层
			if c.handleIntent(intent) {
				c.publish()
			}
		}
	}
}

// Shutdown 终止会话循环
func (c *Controller) Shutdown() {
	close(c.done)
}

func (c *Controller) readLoop(conn network.Connection, readErr chan<- error) {
	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case c.inbound <- packet:
		case <-c.done:
			return
		}
	}
}

func (c *Controller) handshake() error {
	ident := c.ident.Identity()
	return c.sendJSON(network.MsgTypeSetIdentity, network.SetIdentityReq{
		Token:       ident.Token,
		DisplayName: ident.DisplayName,
		AvatarID:    ident.AvatarID,
	})
}

func (c *Controller) sendJSON(msgID uint16, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.Send(msgID, data)
}

// --- 意图处理 ---

func (c *Controller) handleIntent(intent Intent) bool {
	switch in := intent.(type) {
	case SelectMode:
		c.transition(state.PhaseModeSelect)

	case BackToMain:
		if c.machine.Current() != state.PhaseModeSelect {
			return false
		}
		c.transition(state.PhaseIdle)

	case CreateRoom:
		if c.machine.Current() != state.PhaseModeSelect {
			return false
		}
		// 乐观切换，服务端报错时会被纠正回主界面
		c.transition(state.PhaseLobby)
		c.request(network.MsgTypeCreateRoom, network.CreateRoomReq{
			Kind:         in.Kind,
			Mode:         in.Mode,
			WinsRequired: in.WinsRequired,
			Capacity:     in.Capacity,
		})

	case JoinRoom:
		if c.machine.Current() == state.PhaseModeSelect {
			c.transition(state.PhaseLobby)
		}
		c.request(network.MsgTypeJoinRoom, network.JoinRoomReq{RoomID: in.RoomID})

	case OpenDeepLink:
		return c.openDeepLink(in.URL)

	case ToggleReady:
		if c.machine.Current() != state.PhaseLobby || c.rooms.Current() == "" {
			return false
		}
		c.optimisticReady = !c.optimisticReady
		status := models.ReadyWaiting
		if c.optimisticReady {
			status = models.ReadyReady
		}
		c.request(network.MsgTypeSetReady, network.SetReadyReq{
			RoomID: c.rooms.Current(),
			Status: status,
		})

	case SubmitMove:
		if c.machine.Current() != state.PhaseInProgress || c.rooms.Current() == "" {
			return false
		}
		c.request(network.MsgTypeSubmitMove, network.SubmitMoveReq{
			RoomID: c.rooms.Current(),
			Move:   in.Move,
			Column: in.Column,
		})

	case Quit:
		c.quit()

	case Rename:
		c.pendingName = in.Name
		c.request(network.MsgTypeRename, network.RenameReq{
			OldName: c.ident.Identity().DisplayName,
			NewName: in.Name,
		})

	case ChangeAvatar:
		c.pendingAvatar = in.AvatarID
		c.request(network.MsgTypeSetAvatar, network.SetAvatarReq{AvatarID: in.AvatarID})

	case Spectate:
		// 观战是叠加态，任何非空闲阶段都可进入
		if c.machine.Current() == state.PhaseIdle {
			return false
		}
		if err := c.rooms.ApplySpectate(in.RoomID); err != nil {
			logger.Log.Warnf("Spectate switch failed: %v", err)
		}

	case UpdateOptions:
		if c.machine.Current() != state.PhaseLobby || c.rooms.Current() == "" {
			return false
		}
		c.request(network.MsgTypeUpdateRoomOptions, network.UpdateRoomOptionsReq{
			RoomID:       c.rooms.Current(),
			WinsRequired: in.WinsRequired,
			Capacity:     in.Capacity,
		})

	case ManageAISlots:
		if c.machine.Current() != state.PhaseLobby || c.rooms.Current() == "" {
			return false
		}
		c.request(network.MsgTypeManageAISlots, network.ManageAISlotsReq{
			RoomID: c.rooms.Current(),
			Delta:  in.Delta,
		})

	case SortRooms:
		_, changed := c.rooms.SortRooms(in.Key, in.Dir)
		return changed

	case SortLeaderboard:
		_, changed := c.rooms.SortLeaderboard(in.Key, in.Dir)
		return changed
	}
	return true
}

// openDeepLink validates a shared room link against the visible-rooms
// table before sending anything: the link may be stale, and a doomed
// join is worse than silently staying put. A link that arrives before
// the first rooms snapshot (the startup path) is parked and re-tried
// when the snapshot lands.
func (c *Controller) openDeepLink(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		logger.Log.Infof("Ignoring bad deep link %q: %v", rawURL, err)
		return false
	}
	roomID := parsed.Query().Get("room")
	if roomID == "" {
		return false
	}

	if !c.tableSeen {
		logger.Log.Infof("Deep link room %s parked until the room table arrives", roomID)
		c.pendingLink = rawURL
		return false
	}

	target, ok := c.rooms.Room(roomID)
	if !ok || !target.SeatAvailable() {
		logger.Log.Infof("Deep link room %s unavailable, staying put", roomID)
		return false
	}

	if c.machine.Current() == state.PhaseIdle {
		c.transition(state.PhaseModeSelect)
	}
	if c.machine.Current() == state.PhaseModeSelect {
		c.transition(state.PhaseLobby)
	}
	c.request(network.MsgTypeJoinRoom, network.JoinRoomReq{RoomID: roomID})
	return true
}

func (c *Controller) quit() {
	switch c.machine.Current() {
	case state.PhaseLobby, state.PhaseInProgress:
		// 只有确实占了位才通知服务端
		if current := c.rooms.CurrentRoom(); current != nil {
			if _, registered := current.Player(c.ident.Identity().Token); registered {
				c.request(network.MsgTypeLeaveRoom, network.LeaveRoomReq{RoomID: c.rooms.Current()})
			}
		} else if c.rooms.Current() != "" {
			c.request(network.MsgTypeLeaveRoom, network.LeaveRoomReq{RoomID: c.rooms.Current()})
		}
		c.rooms.ClearCurrent()
		c.optimisticReady = false
		c.transition(state.PhaseIdle)

	case state.PhaseFinished:
		// 回到主菜单；归档保留，随时可以回看
		c.rooms.ClearCurrent()
		c.optimisticReady = false
		c.transition(state.PhaseIdle)
	}
}

func (c *Controller) request(msgID uint16, payload any) {
	if err := c.sendJSON(msgID, payload); err != nil {
		logger.Log.Warnf("Session %s failed to send %d: %v", c.sessionID, msgID, err)
	}
}

func (c *Controller) transition(to state.Phase) {
	if err := c.machine.Transition(to); err != nil {
		logger.Log.Warnf("Session %s: transition %s -> %s rejected",
			c.sessionID, c.machine.Current(), to)
	}
}

// --- 推送处理 ---

// handlePacket applies one push and reports whether the visible state
// changed (dropped, undecodable and no-op events publish nothing).
func (c *Controller) handlePacket(packet *network.Packet) bool {
	if c.mon != nil {
		c.mon.IncEventsReceived()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// 服务端回响，无需处理
		return false

	case network.MsgTypeIdentityConfirmed:
		var push network.IdentityConfirmedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		c.applyIdentityConfirmed(push)
		return true

	case network.MsgTypeRenameRejected:
		var push network.RenameRejectedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		// 本地缓存从未被写过，旧名字自然保留
		c.pendingName = ""
		c.warning = push.Reason
		return true

	case network.MsgTypeRoomCreated:
		var push network.RoomCreatedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		c.rooms.ApplyRoomCreated(push.RoomID)
		return true

	case network.MsgTypeRoomJoined:
		var push network.RoomJoinedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		c.rooms.ApplyRoomJoined(push.RoomID)
		return true

	case network.MsgTypeRoomUnavailable:
		var push network.RoomUnavailablePush
		if !c.decode(packet.Data, &push) {
			return false
		}
		c.applyRoomUnavailable(push)
		return true

	case network.MsgTypeRoomOptionsChanged:
		var push network.RoomOptionsChangedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		return c.rooms.ApplyRoomOptions(push)

	case network.MsgTypeGameStarted:
		var push network.GameStartedPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		return c.applyGameStarted(push)

	case network.MsgTypeRoundResult:
		var push network.RoundResultPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		return c.applyRoundResult(push)

	case network.MsgTypePlayerLeft:
		var push network.PlayerLeftPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		return c.rooms.ApplyPlayerLeft(push.RoomID, push.Token)

	case network.MsgTypeFullTableSnapshot:
		var push network.FullTableSnapshotPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		return c.applyFullTable(push)

	case network.MsgTypeWarning:
		var push network.WarningPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		c.warning = push.Message
		return true

	case network.MsgTypeFatalError:
		var push network.FatalErrorPush
		if !c.decode(packet.Data, &push) {
			return false
		}
		logger.Log.Warnf("Session %s fatal server error: %s", c.sessionID, push.Message)
		c.reset(push.Message)
		return true

	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return false
	}
}

func (c *Controller) decode(data []byte, out any) bool {
	if err := json.Unmarshal(data, out); err != nil {
		logger.Log.Warnf("Session %s dropped undecodable push: %v", c.sessionID, err)
		return false
	}
	return true
}

func (c *Controller) applyIdentityConfirmed(push network.IdentityConfirmedPush) {
	if push.Conflict {
		// 身份被别处的活动会话占用：保留身份，降级为未认证，
		// 直到下一次握手成功
		c.ident.SetAuthenticated(false)
		c.warning = "identity already bound to another session"
		return
	}

	c.ident.SetAuthenticated(true)
	if push.DisplayName != "" && push.DisplayName != c.ident.Identity().DisplayName {
		if err := c.ident.ApplyRename(push.DisplayName); err != nil {
			logger.Log.Errorf("Failed to persist confirmed rename: %v", err)
		}
	}
	if push.AvatarID != "" && push.AvatarID != c.ident.Identity().AvatarID {
		if err := c.ident.ApplyAvatar(push.AvatarID); err != nil {
			logger.Log.Errorf("Failed to persist confirmed avatar: %v", err)
		}
	}
	c.pendingName = ""
	c.pendingAvatar = ""
}

func (c *Controller) applyRoomUnavailable(push network.RoomUnavailablePush) {
	// 乐观的大厅切换被服务端否决，回退
	if c.machine.Current() == state.PhaseLobby {
		c.rooms.ClearCurrent()
		c.optimisticReady = false
		c.transition(state.PhaseIdle)
	}
	c.warning = push.Reason
}

func (c *Controller) applyGameStarted(push network.GameStartedPush) bool {
	if !c.rooms.ApplyGameStarted(push.Room) {
		return false
	}
	if push.Room.RoomID == c.rooms.Current() {
		// 开局只由服务端驱动，本地从不乐观进入
		c.transition(state.PhaseInProgress)
		c.reconcileReady()
	}
	if c.mon != nil {
		c.mon.SetShadowRooms(c.rooms.Len())
	}
	return true
}

func (c *Controller) applyRoundResult(push network.RoundResultPush) bool {
	gameOver, applied := c.rooms.ApplyRoundResult(push)
	if !applied {
		return false
	}
	if !gameOver {
		return true
	}

	if archive, ok := c.rooms.Archive(push.RoomID); ok && c.store != nil {
		if err := c.store.SaveRoomArchive(archive); err != nil {
			logger.Log.Errorf("Failed to archive room %s: %v", push.RoomID, err)
		}
	}
	if push.RoomID == c.rooms.Current() {
		c.transition(state.PhaseFinished)
	}
	return true
}

func (c *Controller) applyFullTable(push network.FullTableSnapshotPush) bool {
	switch push.Kind {
	case "rooms":
		changed := c.rooms.ApplyFullRoomTable(push.Rooms)
		readyBefore := c.optimisticReady
		c.reconcileReady()
		if c.mon != nil {
			c.mon.SetShadowRooms(c.rooms.Len())
		}
		c.tableSeen = true
		// 停在这里等房间表的深链接现在可以验证了
		if c.pendingLink != "" {
			link := c.pendingLink
			c.pendingLink = ""
			if c.openDeepLink(link) {
				changed = true
			}
		}
		return changed || c.optimisticReady != readyBefore
	case "leaderboard":
		return c.rooms.ApplyLeaderboard(push.Leaderboard)
	default:
		logger.Log.Infof("Unknown table snapshot kind %q", push.Kind)
		return false
	}
}

// reconcileReady 折叠乐观准备位：权威快照里的值永远胜出
func (c *Controller) reconcileReady() {
	current := c.rooms.CurrentRoom()
	if current == nil {
		return
	}
	if me, ok := current.Player(c.ident.Identity().Token); ok {
		c.optimisticReady = me.Ready == models.ReadyReady
	}
}

// reset is the blunt recovery path: back to idle, current-room pointer
// gone, optimistic flags discarded, spectate overlay off.
func (c *Controller) reset(warning string) {
	c.machine.Reset()
	c.rooms.ClearCurrent()
	if err := c.rooms.ApplySpectate(""); err != nil {
		logger.Log.Debugf("Spectate unsubscribe on reset failed: %v", err)
	}
	c.optimisticReady = false
	c.pendingName = ""
	c.pendingAvatar = ""
	c.pendingLink = ""
	c.warning = warning
}

// --- 视图发布 ---

func (c *Controller) publish() {
	view := c.buildView()

	c.viewMutex.Lock()
	c.lastView = view
	c.viewMutex.Unlock()

	if c.views != nil {
		c.views.Publish(view)
	}
}

func (c *Controller) buildView() models.SessionView {
	view := models.SessionView{
		Phase:          string(c.machine.Current()),
		Identity:       c.ident.Identity(),
		Authenticated:  c.ident.Authenticated(),
		CurrentRoomID:  c.rooms.Current(),
		SpectatingRoom: c.rooms.Spectating(),
		Ready:          c.optimisticReady,
		Rooms:          c.rooms.RoomsView(),
		Leaderboard:    c.rooms.LeaderboardView(),
		Warning:        c.warning,
	}
	if c.rooms.Current() != "" && c.origin != "" {
		view.ShareURL = fmt.Sprintf("%s/?room=%s", c.origin, c.rooms.Current())
	}
	return view
}
