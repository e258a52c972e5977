package connection

// Connection is a participant connection. UserID and Username are empty for anonymous clients.
type Connection struct {
	ConnID   string
	UserID   string
	Username string
	RoomID   string
}

func (c Connection) Anonymous() bool {
	return c.UserID == ""
}

// ParticipantID is the identity host authority is granted to.
func (c Connection) ParticipantID() string {
	if c.Anonymous() {
		return c.ConnID
	}

	return c.UserID
}
