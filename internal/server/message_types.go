package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeJoinTable  MessageType = "join"
	MessageTypeAction     MessageType = "action"
	MessageTypeLeaveTable MessageType = "leave"
	MessageTypeListTables MessageType = "list_tables"
	MessageTypeWatch      MessageType = "watch"
	MessageTypeUnwatch    MessageType = "unwatch"

	// Server to client messages
	MessageTypeTableSnapshot MessageType = "table_snapshot"
	MessageTypeTimerTick     MessageType = "timer_tick"
	MessageTypeHandResult    MessageType = "hand_result"
	MessageTypeTableLeft     MessageType = "table_left"
	MessageTypeTableList     MessageType = "table_list"
	MessageTypeError         MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
