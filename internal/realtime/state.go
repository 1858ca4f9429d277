package realtime

// State is the lifecycle state of the comment channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoining
	StateJoined
	StateLeaving
	StateFailed
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateJoining:      "joining",
	StateJoined:       "joined",
	StateLeaving:      "leaving",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateNames lists the names of every state in declaration order.
func StateNames() []string {
	return append([]string(nil), stateNames[:]...)
}
