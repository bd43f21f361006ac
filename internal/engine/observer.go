package engine

import "github.com/alexisbeaulieu97/dialprov/internal/model"

// Observer receives stage lifecycle events. Implementations are called from
// the executor goroutine and must not block for long.
type Observer interface {
	StageStarted(stage Stage)
	StageFinished(result model.StageResult)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StageStarted(Stage)              {}
func (NopObserver) StageFinished(model.StageResult) {}
