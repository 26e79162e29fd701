package room

// Sender is the outbound side of the channel. It is the minimal
// surface the synchronizer needs for spectate subscribe/unsubscribe;
// defined here to avoid depending on the full connection.
type Sender interface {
	Send(msgID uint16, data []byte) error
}

// Observer receives bookkeeping signals from the synchronizer.
// Defined here to break the import cycle with monitor.
type Observer interface {
	EventDropped()
	RoundAppended()
}
