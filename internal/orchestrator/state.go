package orchestrator

import (
	"maps"
	"slices"

	"ocrup/internal/model"
)

// State — составное состояние оркестратора. Мутируется только из
// цикла событий; наружу отдаются клоны.
//
// Инварианты: IsProcessing=true влечет TaskUID != ""; TaskUID
// очищается ровно в момент получения терминального статуса.
type State struct {
	Files        []model.StagedFile
	Credential   string
	IsUploading  bool
	IsProcessing bool
	TaskUID      string
	Progress     float64
	Results      model.ResultSet
	Rejected     model.RejectionReport
}

func (s State) Clone() State {
	return State{
		Files:        slices.Clone(s.Files),
		Credential:   s.Credential,
		IsUploading:  s.IsUploading,
		IsProcessing: s.IsProcessing,
		TaskUID:      s.TaskUID,
		Progress:     s.Progress,
		Results:      maps.Clone(s.Results),
		Rejected:     s.Rejected.Clone(),
	}
}
