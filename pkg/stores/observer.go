package stores

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/condep/condep/pkg/deploy"
)

// JournalObserver writes deploy progress to the journal. Write failures are
// logged and never fail the deploy.
type JournalObserver struct {
	ctx    context.Context
	store  *SQLiteStore
	id     string
	logger zerolog.Logger
}

var _ deploy.Observer = (*JournalObserver)(nil)

// Observer returns a deploy observer recording into deployment id.
func (s *SQLiteStore) Observer(ctx context.Context, id string, logger zerolog.Logger) *JournalObserver {
	return &JournalObserver{ctx: ctx, store: s, id: id, logger: logger}
}

func (o *JournalObserver) StageChanged(stage deploy.Stage) {
	if stage.Terminal() {
		return
	}
	if err := o.store.UpdateStage(o.ctx, o.id, string(stage)); err != nil {
		o.logger.Warn().Err(err).Str("deployment", o.id).Msg("failed to journal stage")
	}
}

func (o *JournalObserver) FileCopied(c deploy.Category, local, remote string) {
	err := o.store.RecordFile(o.ctx, &DeployedFile{
		DeploymentID: o.id,
		Category:     c.String(),
		LocalPath:    local,
		RemotePath:   remote,
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("deployment", o.id).Str("remote", remote).Msg("failed to journal file")
	}
}

func (o *JournalObserver) CommandFinished(string, []byte, error) {}

func (o *JournalObserver) Finished(result *deploy.Result, err error) {
	stage := result.Stage
	if err != nil && result.FailedStage != "" {
		stage = result.FailedStage
	}
	if ferr := o.store.FinishDeployment(o.ctx, o.id, string(stage), err); ferr != nil {
		o.logger.Warn().Err(ferr).Str("deployment", o.id).Msg("failed to journal outcome")
	}
}
