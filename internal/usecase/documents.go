package usecase

import (
	"context"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
)

// UploadDocuments replaces the document set and switches to document mode.
// On failure the previous set and mode are kept.
func (c *TurnController) UploadDocuments(ctx context.Context, files []domain.UploadFile) (domain.DocumentSet, error) {
	turn, err := c.beginBlockingTurn(ctx, domain.TurnStateGenerating)
	if err != nil {
		return domain.DocumentSet{}, err
	}
	defer turn.running.Done()

	if !c.advance(turn, domain.TurnStateGenerating, domain.ReasonUploadingDocuments) {
		return domain.DocumentSet{}, c.fail(turn, domain.ErrCancelled, "", "")
	}

	set, err := c.assistant.UploadDocuments(turn.ctx, files, turn.language)
	if err != nil {
		logx.Warn().Err(err).Int("files", len(files)).Msg("document upload failed")
		code, reason := classifyFailure(err)
		if code == domain.ErrorCodeGeneration {
			code, reason = domain.ErrorCodeUpload, domain.ReasonUploadFailed
		}
		return domain.DocumentSet{}, c.fail(turn, err, code, reason)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != turn || turn.cancelled() {
		return domain.DocumentSet{}, domain.ErrCancelled
	}
	c.pending = nil
	turn.cancel()
	c.documents = set
	c.mode = domain.ModeDocumentGrounded
	logx.Info().Strs("documents", set.Filenames()).Msg("documents ready")
	c.events.DocumentsChanged(set)
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonDocumentsReady)
	return set, nil
}

// ClearDocuments drops the local document references. The mode is kept, so
// document-mode turns fall back to free chat until new documents arrive.
func (c *TurnController) ClearDocuments() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents = domain.DocumentSet{}
	c.events.DocumentsChanged(c.documents)
	if c.pending == nil {
		c.setStateLocked(domain.TurnStateIdle, domain.ReasonDocumentsCleared)
	}
}

// Documents returns the attached document set.
func (c *TurnController) Documents() domain.DocumentSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]domain.Document, len(c.documents.Documents))
	copy(docs, c.documents.Documents)
	return domain.DocumentSet{Documents: docs}
}
