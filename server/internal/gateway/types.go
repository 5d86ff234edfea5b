package gateway

import "pose-play/server/internal/model"

// ClientMessage 是客户端经 WebSocket 上行的消息。
// frame 是高频通道（相机每帧一条），command/answer 是低频交互。
type ClientMessage struct {
	Type string `json:"type"` // command | answer | frame | ping

	// type=command：客户端命令（NEXT/PAUSE/SET_SETTING/...）。
	Command *model.Command `json:"command,omitempty"`

	// type=answer：INTUITION/INSIGHT 的作答。
	Answer string `json:"answer,omitempty"`

	// type=frame：实时关键点帧。
	Frame *model.LandmarkFrame `json:"frame,omitempty"`
}

// ServerMessage 是服务端下行的消息。Seq 在连接内单调递增，
// 客户端用它丢弃乱序到达的旧快照。
type ServerMessage struct {
	Type string `json:"type"` // snapshot | completed | error | pong
	Seq  int64  `json:"seq"`

	Session *model.Session `json:"session,omitempty"`
	Error   string         `json:"error,omitempty"`
}
