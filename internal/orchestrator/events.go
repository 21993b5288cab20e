package orchestrator

import (
	"ocrup/internal/client"
	"ocrup/internal/intake"
	"ocrup/internal/model"
)

// Событие цикла оркестратора. Все переходы состояния выполняются
// последовательно в одной горутине, обрабатывающей очередь событий;
// коллбеки сети публикуют завершения как события и не трогают
// состояние напрямую.
type event interface {
	isEvent()
}

type tokenFetched struct{ token string }

type tokenFailed struct{ err error }

// dropRequest несет уже обследованных кандидатов: I/O инспекции
// выполняется вне цикла, вердикты применяются к актуальному состоянию
// внутри него.
type dropRequest struct{ cands []intake.Candidate }

type removeRequest struct{ name string }

type submitRequest struct{}

type submitDone struct {
	uid string
	err error
}

type tick struct{}

type statusDone struct {
	uid  string
	resp client.StatusResponse
	err  error
}

type resultsDone struct {
	uid     string
	results model.ResultSet
	err     error
}

func (tokenFetched) isEvent()  {}
func (tokenFailed) isEvent()   {}
func (dropRequest) isEvent()   {}
func (removeRequest) isEvent() {}
func (submitRequest) isEvent() {}
func (submitDone) isEvent()    {}
func (tick) isEvent()          {}
func (statusDone) isEvent()    {}
func (resultsDone) isEvent()   {}
