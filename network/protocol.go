package network

// Message IDs. 1xx are client requests (fire-and-forget), 3xx are
// server pushes. Every request is answered, if at all, by a later push.
const (
	MsgTypeHeartbeat = 1

	MsgTypeSetIdentity         = 101
	MsgTypeRename              = 102
	MsgTypeSetAvatar           = 103
	MsgTypeCreateRoom          = 111
	MsgTypeJoinRoom            = 112
	MsgTypeLeaveRoom           = 113
	MsgTypeSetReady            = 114
	MsgTypeSubmitMove          = 115
	MsgTypeUpdateRoomOptions   = 116
	MsgTypeManageAISlots       = 117
	MsgTypeSubscribeSpectate   = 121
	MsgTypeUnsubscribeSpectate = 122

	MsgTypeIdentityConfirmed  = 301
	MsgTypeRenameRejected     = 302
	MsgTypeRoomCreated        = 311
	MsgTypeRoomJoined         = 312
	MsgTypeRoomOptionsChanged = 313
	MsgTypeGameStarted        = 314
	MsgTypeRoundResult        = 315
	MsgTypePlayerLeft         = 316
	MsgTypeRoomUnavailable    = 317
	MsgTypeFullTableSnapshot  = 321
	MsgTypeWarning            = 331
	MsgTypeFatalError         = 332
)
