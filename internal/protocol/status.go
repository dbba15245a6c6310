package protocol

// Constructors for the common reply and broadcast payloads. Direct replies
// echo the request seq; broadcasts omit it.

func StatusReply(seq int, data any) Status {
	return Status{Type: TypeStatus, Seq: Seq(seq), Data: data}
}

func StatusBroadcast(data any) Status {
	return Status{Type: TypeStatus, Data: data}
}

func ClientJoined(c ClientInfo) ClientStatus {
	return ClientStatus{Type: StatusClientJoined, UUID: c.UUID, Name: c.Name}
}

func ClientLeft(c ClientInfo) ClientStatus {
	return ClientStatus{Type: StatusClientLeft, UUID: c.UUID, Name: c.Name}
}

func Subscribed(group string) GroupStatus {
	return GroupStatus{Type: StatusSubscribed, Group: group}
}

func Unsubscribed(group string) GroupStatus {
	return GroupStatus{Type: StatusUnsubscribed, Group: group}
}

func CreatedGroup(group string) GroupStatus {
	return GroupStatus{Type: StatusCreatedGroup, Group: group}
}

func DeletedGroup(group string) GroupStatus {
	return GroupStatus{Type: StatusDeletedGroup, Group: group}
}

func MessageSent() SimpleStatus {
	return SimpleStatus{Type: StatusMessageSent}
}

func ErrorReply(seq int, code, message string) Error {
	return Error{Type: TypeError, Seq: Seq(seq), Code: code, Message: message}
}
