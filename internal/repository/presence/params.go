package presence

type AddParticipantParams struct {
	RoomID      string
	Participant Participant
}

type RemoveParticipantParams struct {
	RoomID string
	ConnID string
}
