package presence

type Participant struct {
	ConnID   string `json:"conn_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joined_at"`
}
