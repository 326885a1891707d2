package game

// Metrics receives gameplay counters. The api package backs it with prometheus.
type Metrics interface {
	SetPlayers(n int)
	ShotResolved(outcome ShotOutcome)
	AutoRespawned()
	JoinRejected()
	MessageSent(event string)
}

type noopMetrics struct{}

func (noopMetrics) SetPlayers(int) {}
func (noopMetrics) ShotResolved(ShotOutcome) {}
func (noopMetrics) AutoRespawned() {}
func (noopMetrics) JoinRejected() {}
func (noopMetrics) MessageSent(string) {}
