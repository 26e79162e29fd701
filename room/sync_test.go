package room

import (
	"encoding/json"
	"testing"

	"github.com/wfunc/gameclient/history"
	"github.com/wfunc/gameclient/logger"
	"github.com/wfunc/gameclient/models"
	"github.com/wfunc/gameclient/network"
	"github.com/wfunc/gameclient/table"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type sentMessage struct {
	MsgID uint16
	Data  []byte
}

// MockSender is a test double for the Sender interface. It records
// every outbound request in order.
type MockSender struct {
	sent []sentMessage
}

func (m *MockSender) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, sentMessage{MsgID: msgID, Data: data})
	return nil
}

// MockObserver is a test double for the Observer interface.
type MockObserver struct {
	dropped  int
	appended int
}

func (m *MockObserver) EventDropped()  { m.dropped++ }
func (m *MockObserver) RoundAppended() { m.appended++ }

func twoPlayerRoom(id string) network.RoomInfo {
	return network.RoomInfo{
		RoomID:       id,
		Kind:         models.GameRPS,
		Status:       models.RoomWaiting,
		WinsRequired: 3,
		Capacity:     2,
		Players: []network.PlayerInfo{
			{Token: "p1", Team: "A", Ready: models.ReadyWaiting},
			{Token: "p2", Team: "B", Ready: models.ReadyWaiting},
		},
	}
}

func TestSynchronizer_UnknownRoomEventsAreDropped(t *testing.T) {
	observer := &MockObserver{}
	sync := NewSynchronizer(&MockSender{}, observer)

	_, applied := sync.ApplyRoundResult(network.RoundResultPush{RoomID: "ghost", Round: 1, Step: "RP"})
	if applied {
		t.Error("A round result for an unknown room must not apply")
	}

	if sync.ApplyPlayerLeft("ghost", "p1") {
		t.Error("A player-left for an unknown room must not apply")
	}

	if sync.ApplyGameStarted(twoPlayerRoom("ghost")) {
		t.Error("A game-started for an unknown room must not apply")
	}

	if observer.dropped != 3 {
		t.Errorf("Expected 3 dropped events, got %d", observer.dropped)
	}
	if sync.Len() != 0 {
		t.Errorf("Dropped events must not create shadow rooms, got %d", sync.Len())
	}
}

func TestSynchronizer_GameStartedForCurrentRoom(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyRoomCreated("r1")

	if !sync.ApplyGameStarted(twoPlayerRoom("r1")) {
		t.Fatal("Game-started for the current room should apply")
	}

	r := sync.CurrentRoom()
	if r == nil {
		t.Fatal("Expected a current room shadow")
	}
	if r.Status != models.RoomRunning {
		t.Errorf("Expected running status, got %s", r.Status)
	}
	if len(r.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(r.Players))
	}
}

func TestSynchronizer_RoundResultAppendsAndScores(t *testing.T) {
	observer := &MockObserver{}
	sync := NewSynchronizer(&MockSender{}, observer)
	sync.ApplyRoomCreated("r1")
	sync.ApplyGameStarted(twoPlayerRoom("r1"))

	// 平局重赛步不关闭回合
	sync.ApplyRoundResult(network.RoundResultPush{RoomID: "r1", Round: 1, Step: "RR"})
	gameOver, applied := sync.ApplyRoundResult(network.RoundResultPush{
		RoomID: "r1", Round: 1, Step: "PS", Winner: "p1", RoundOver: true,
	})
	if !applied || gameOver {
		t.Fatalf("Expected applied round without game over, got applied=%v gameOver=%v", applied, gameOver)
	}

	r, _ := sync.Room("r1")
	if len(r.Rounds) != 1 {
		t.Fatalf("Both steps belong to round 1, got %d rounds", len(r.Rounds))
	}
	round := r.Rounds[0]
	if len(round.Steps) != 2 || round.Steps[0] != "RR" || round.Steps[1] != "PS" {
		t.Errorf("Round steps recorded incorrectly: %v", round.Steps)
	}
	if round.WinnerToken != "p1" {
		t.Errorf("Expected round winner p1, got %q", round.WinnerToken)
	}
	if p1, _ := r.Player("p1"); p1.Wins != 1 {
		t.Errorf("Expected winner's score to increment, got %d", p1.Wins)
	}
	if observer.appended != 2 {
		t.Errorf("Expected 2 appended deltas, got %d", observer.appended)
	}
}

func TestSynchronizer_GameOverArchivesRoom(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyRoomCreated("r1")
	sync.ApplyGameStarted(twoPlayerRoom("r1"))

	gameOver, applied := sync.ApplyRoundResult(network.RoundResultPush{
		RoomID: "r1", Round: 1, Step: "RS", Winner: "p1", RoundOver: true, GameOver: true,
	})
	if !applied || !gameOver {
		t.Fatalf("Expected applied game-over round, got applied=%v gameOver=%v", applied, gameOver)
	}

	archive, ok := sync.Archive("r1")
	if !ok {
		t.Fatal("Expected the finished room to be archived")
	}
	if archive.GameKind != models.GameRPS {
		t.Errorf("Archive kind incorrect: %s", archive.GameKind)
	}

	snap, err := history.Decode(archive.GameKind, archive.Snapshot)
	if err != nil {
		t.Fatalf("Archived snapshot should decode, but got: %v", err)
	}
	if len(snap.Rounds) != 1 || snap.Rounds[0].WinnerToken != "p1" {
		t.Errorf("Archived round log incorrect: %+v", snap.Rounds)
	}
}

func TestSynchronizer_PlayerLeftKeepsRounds(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyRoomCreated("r1")
	sync.ApplyGameStarted(twoPlayerRoom("r1"))
	sync.ApplyRoundResult(network.RoundResultPush{
		RoomID: "r1", Round: 1, Step: "RS", Winner: "p1", RoundOver: true,
	})

	if !sync.ApplyPlayerLeft("r1", "p2") {
		t.Fatal("Player-left for a known room should apply")
	}

	r, _ := sync.Room("r1")
	if len(r.Players) != 1 {
		t.Errorf("Expected 1 remaining player, got %d", len(r.Players))
	}
	if len(r.Rounds) != 1 {
		t.Errorf("The round log must survive a departure, got %d rounds", len(r.Rounds))
	}
}

func TestSynchronizer_FullTableReplacesAndKeepsCurrent(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyRoomCreated("mine")

	sync.ApplyFullRoomTable(map[string]network.RoomInfo{
		"r2": twoPlayerRoom("r2"),
		"r3": twoPlayerRoom("r3"),
	})

	// 当前房间不在快照里也要保留影子
	if _, ok := sync.Room("mine"); !ok {
		t.Error("The current room shadow must survive a full-table replace")
	}
	if sync.Len() != 3 {
		t.Errorf("Expected 3 shadow rooms, got %d", sync.Len())
	}
	if sync.Current() != "mine" {
		t.Errorf("Current room pointer should be untouched, got %q", sync.Current())
	}
}

func TestSynchronizer_RoomTableSorting(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyFullRoomTable(map[string]network.RoomInfo{
		"b": twoPlayerRoom("b"),
		"a": twoPlayerRoom("a"),
		"c": twoPlayerRoom("c"),
	})

	view := sync.RoomsView()
	if len(view) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(view))
	}
	if view[0]["room_id"] != "a" || view[1]["room_id"] != "b" || view[2]["room_id"] != "c" {
		t.Errorf("Default sort should order by room id ascending: %v", view)
	}

	sorted, changed := sync.SortRooms("room_id", table.Desc)
	if !changed {
		t.Fatal("Reversing the direction should change the order")
	}
	if sorted[0]["room_id"] != "c" {
		t.Errorf("Descending sort incorrect: %v", sorted)
	}

	// Re-sorting with the same key and direction is a no-op.
	_, changed = sync.SortRooms("room_id", table.Desc)
	if changed {
		t.Error("Sorting an already sorted view should report no change")
	}
}

func TestSynchronizer_LeaderboardSorting(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyLeaderboard([]models.LeaderboardEntry{
		{Token: "p1", DisplayName: "alice", WinRate: 0.4},
		{Token: "p2", DisplayName: "bob", WinRate: 0.9},
		{Token: "p3", DisplayName: "carol", WinRate: 0.7},
	})

	view := sync.LeaderboardView()
	if view[0]["token"] != "p2" || view[1]["token"] != "p3" || view[2]["token"] != "p1" {
		t.Errorf("Default sort should order by win rate descending: %v", view)
	}

	sorted, _ := sync.SortLeaderboard("name", table.Asc)
	if sorted[0]["name"] != "alice" {
		t.Errorf("Lexical re-sort incorrect: %v", sorted)
	}
}

func TestSynchronizer_SpectateSwitchOrdering(t *testing.T) {
	sender := &MockSender{}
	sync := NewSynchronizer(sender, nil)
	sync.ApplyFullRoomTable(map[string]network.RoomInfo{
		"a": twoPlayerRoom("a"),
		"b": twoPlayerRoom("b"),
	})

	if err := sync.ApplySpectate("a"); err != nil {
		t.Fatalf("Subscribing should not return an error, but got: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].MsgID != network.MsgTypeSubscribeSpectate {
		t.Fatalf("Expected a single subscribe, got %v", sender.sent)
	}

	sender.sent = nil
	if err := sync.ApplySpectate("b"); err != nil {
		t.Fatalf("Switching should not return an error, but got: %v", err)
	}

	// 切换目标必须先退订旧目标再订阅新目标
	if len(sender.sent) != 2 {
		t.Fatalf("Expected exactly unsubscribe+subscribe, got %d messages", len(sender.sent))
	}
	if sender.sent[0].MsgID != network.MsgTypeUnsubscribeSpectate {
		t.Errorf("First message must be the unsubscribe, got %d", sender.sent[0].MsgID)
	}
	var unsub network.SpectateReq
	json.Unmarshal(sender.sent[0].Data, &unsub)
	if unsub.RoomID != "a" {
		t.Errorf("Unsubscribe must target the old room, got %q", unsub.RoomID)
	}
	if sender.sent[1].MsgID != network.MsgTypeSubscribeSpectate {
		t.Errorf("Second message must be the subscribe, got %d", sender.sent[1].MsgID)
	}
	var sub network.SpectateReq
	json.Unmarshal(sender.sent[1].Data, &sub)
	if sub.RoomID != "b" {
		t.Errorf("Subscribe must target the new room, got %q", sub.RoomID)
	}

	if sync.Spectating() != "b" {
		t.Errorf("Expected spectate target b, got %q", sync.Spectating())
	}
}

func TestSynchronizer_SpectateOff(t *testing.T) {
	sender := &MockSender{}
	sync := NewSynchronizer(sender, nil)
	sync.ApplySpectate("a")

	sender.sent = nil
	if err := sync.ApplySpectate(""); err != nil {
		t.Fatalf("Unsubscribing should not return an error, but got: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].MsgID != network.MsgTypeUnsubscribeSpectate {
		t.Fatalf("Expected a single unsubscribe, got %v", sender.sent)
	}
	if sync.Spectating() != "" {
		t.Errorf("Expected no spectate target, got %q", sync.Spectating())
	}
}

func TestSynchronizer_SpectateSameTargetIsNoOp(t *testing.T) {
	sender := &MockSender{}
	sync := NewSynchronizer(sender, nil)
	sync.ApplySpectate("a")

	sender.sent = nil
	sync.ApplySpectate("a")
	if len(sender.sent) != 0 {
		t.Errorf("Re-selecting the current target should send nothing, got %v", sender.sent)
	}
}

func TestSynchronizer_RoomOptionsOnlyWhileWaiting(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	sync.ApplyRoomCreated("r1")

	wins := 5
	if !sync.ApplyRoomOptions(network.RoomOptionsChangedPush{RoomID: "r1", WinsRequired: &wins}) {
		t.Fatal("Option change for a waiting room should apply")
	}
	r, _ := sync.Room("r1")
	if r.WinsRequired != 5 {
		t.Errorf("Expected wins required 5, got %d", r.WinsRequired)
	}

	sync.ApplyGameStarted(twoPlayerRoom("r1"))
	wins = 7
	if sync.ApplyRoomOptions(network.RoomOptionsChangedPush{RoomID: "r1", WinsRequired: &wins}) {
		t.Error("Option change for a running room must not apply")
	}
}

func TestSynchronizer_RoomJoinedCreatesShadow(t *testing.T) {
	observer := &MockObserver{}
	sync := NewSynchronizer(&MockSender{}, observer)

	sync.ApplyRoomJoined("r1")

	if _, ok := sync.Room("r1"); !ok {
		t.Fatal("Joining must create a placeholder shadow before the next snapshot")
	}
	if sync.Current() != "r1" {
		t.Errorf("Expected current room r1, got %q", sync.Current())
	}

	// 快照没到之前，针对本房间的推送也必须命中影子
	wins := 5
	if !sync.ApplyRoomOptions(network.RoomOptionsChangedPush{RoomID: "r1", WinsRequired: &wins}) {
		t.Error("Option change for the just-joined room must apply")
	}
	if !sync.ApplyPlayerLeft("r1", "p2") {
		t.Error("Player-left for the just-joined room must apply")
	}
	if observer.dropped != 0 {
		t.Errorf("Events for the just-joined room must not be dropped, got %d", observer.dropped)
	}
}

func TestSynchronizer_FullTableUnchangedReportsNoChange(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	rooms := map[string]network.RoomInfo{
		"a": twoPlayerRoom("a"),
		"b": twoPlayerRoom("b"),
	}

	if !sync.ApplyFullRoomTable(rooms) {
		t.Fatal("The first snapshot should change the view")
	}

	// 内容一样的快照不算变化，对比的是上一份视图
	if sync.ApplyFullRoomTable(rooms) {
		t.Error("An identical snapshot must report no change")
	}

	rooms["c"] = twoPlayerRoom("c")
	if !sync.ApplyFullRoomTable(rooms) {
		t.Error("A snapshot with a new room must report a change")
	}
}

func TestSynchronizer_LeaderboardUnchangedReportsNoChange(t *testing.T) {
	sync := NewSynchronizer(&MockSender{}, nil)
	entries := []models.LeaderboardEntry{
		{Token: "p1", DisplayName: "alice", WinRate: 0.4},
		{Token: "p2", DisplayName: "bob", WinRate: 0.9},
	}

	if !sync.ApplyLeaderboard(entries) {
		t.Fatal("The first leaderboard should change the view")
	}
	if sync.ApplyLeaderboard(entries) {
		t.Error("An identical leaderboard must report no change")
	}

	entries[0].WinRate = 0.95
	if !sync.ApplyLeaderboard(entries) {
		t.Error("A changed win rate must report a change")
	}
}
