package domain

// Session identifies the caller a store acts for. It is handed to stores at
// construction time instead of living in process-wide state.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Anonymous() bool {
	return s.UserID == "" && s.Token == ""
}
