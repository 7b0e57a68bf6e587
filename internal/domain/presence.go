package domain

// Status is the presence state shown to friends.
// Online/offline are derived from live connections; idle and
// doNotDisturb are overlays declared by the user while online.
type Status string

const (
	StatusOnline       Status = "online"
	StatusOffline      Status = "offline"
	StatusIdle         Status = "idle"
	StatusDoNotDisturb Status = "doNotDisturb"
)

// Declarable reports whether a client may set s itself.
func (s Status) Declarable() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDoNotDisturb:
		return true
	}
	return false
}
