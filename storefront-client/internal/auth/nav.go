package auth

const DashboardPath = "/dashboard"

// Nav is what the navigation bar shows for a session.
type Nav struct {
	ShowLogin    bool
	ShowRegister bool
	ShowUserMenu bool
	Greeting     string
	Dashboard    string
}

func NavFor(s Session) Nav {
	if !s.Authenticated {
		return Nav{ShowLogin: true, ShowRegister: true}
	}
	return Nav{
		ShowUserMenu: true,
		Greeting:     "Привет, " + s.User.Username,
		Dashboard:    DashboardPath,
	}
}
