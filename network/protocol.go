package network

// 消息ID定义
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateBattle = 101
	MsgTypeJoinBattle   = 102
	MsgTypeLeaveBattle  = 103

	MsgTypeStartBattle  = 201
	MsgTypeSetPrompt    = 202
	MsgTypeSubmitPrompt = 203
	MsgTypeResetBattle  = 204

	MsgTypeBattleState  = 301
	MsgTypeBattleRecord = 302

	MsgTypeError = 401
)
