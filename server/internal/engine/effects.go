package engine

import (
	"github.com/google/uuid"

	"pose-play/server/internal/model"
)

// 效果出站箱的写入口。归约器只在这里排队副作用描述符，
// 真正的上报/录制由外部消费方（Runner）执行并回发 CONSUME_EFFECTS。

// emitTelemetry 排队一条遥测事件。At/NodeIndex/StateType 按当前会话补齐，
// 调用方只填事件特有字段。
func emitTelemetry(s *model.Session, evt model.TelemetryEvent) {
	evt.EventID = uuid.NewString()
	evt.PlayID = s.PlayID
	evt.At = s.Clock.Now
	evt.NodeIndex = s.NodeIndex
	if evt.StateType == "" {
		if node := s.Node(); node != nil {
			evt.StateType = node.Type
		}
	}
	s.Effects = append(s.Effects, model.Effect{Type: model.EffectTelemetry, Event: &evt})
}

// emitRecordingHint 排队一条录制开关提示。
func emitRecordingHint(s *model.Session, enabled bool, stateType model.NodeType, nodeIndex int) {
	s.Effects = append(s.Effects, model.Effect{
		Type:      model.EffectRecordingHint,
		Enabled:   enabled,
		StateType: stateType,
		NodeIndex: nodeIndex,
	})
}

// emitOnComplete 排队终态通知。之后不会再进入任何节点，
// 但会话对象仍然有效，供消费方做最后一次 drain。
func emitOnComplete(s *model.Session) {
	s.Effects = append(s.Effects, model.Effect{Type: model.EffectOnComplete})
}

// recordingEnabled 给出某节点类型是否需要录制姿势帧：
// 只有需要玩家身体参与的节点（比对/问答）才开录制。
func recordingEnabled(t model.NodeType) bool {
	switch t {
	case model.NodePoseMatch, model.NodeInsight, model.NodeIntuition:
		return true
	default:
		return false
	}
}
