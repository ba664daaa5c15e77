package usecase

import (
	"context"
	"errors"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// respond generates the answer for userText, commits it, then speaks it.
func (c *TurnController) respond(turn *pendingTurn, userText string) (domain.TurnResult, error) {
	target, ok := c.enterGenerating(turn)
	if !ok {
		return domain.TurnResult{}, c.fail(turn, domain.ErrCancelled, "", "")
	}

	history, err := c.store.History(turn.ctx, target.mode)
	if err != nil {
		logx.Error().Err(err).Str("mode", string(target.mode)).Msg("failed to load conversation history")
		return domain.TurnResult{}, c.fail(turn, err, domain.ErrorCodeStore, domain.ReasonHistoryUnavailable)
	}

	var answer string
	if target.mode == domain.ModeDocumentGrounded {
		answer, err = c.assistant.QueryDocuments(turn.ctx, userText, target.documents, history, turn.language)
	} else {
		answer, err = c.assistant.GenerateResponse(turn.ctx, userText, history, turn.language)
	}
	if err != nil {
		code, reason := classifyFailure(err)
		if target.mode == domain.ModeDocumentGrounded && code == domain.ErrorCodeGeneration {
			code, reason = domain.ErrorCodeQuery, domain.ReasonQueryFailed
		}
		return domain.TurnResult{}, c.fail(turn, err, code, reason)
	}

	exchange := domain.Exchange{
		ID:         c.newID(),
		UserText:   userText,
		AnswerText: answer,
		Mode:       target.mode,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.commit(turn, exchange); err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			return domain.TurnResult{}, c.fail(turn, err, "", "")
		}
		return domain.TurnResult{}, c.fail(turn, err, domain.ErrorCodeStore, domain.ReasonCommitFailed)
	}

	return c.speak(turn, exchange)
}

// enterGenerating picks the generation target once per turn.
func (c *TurnController) enterGenerating(turn *pendingTurn) (route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != turn || turn.cancelled() {
		return route{}, false
	}

	target := route{mode: domain.ModeFreeChat}
	reason := domain.ReasonGenerating
	if c.mode == domain.ModeDocumentGrounded && !c.documents.Empty() {
		target = route{mode: domain.ModeDocumentGrounded, documents: c.documents}
		reason = domain.ReasonQueryingDocuments
	}
	turn.state = domain.TurnStateGenerating
	c.setStateLocked(domain.TurnStateGenerating, reason)
	return target, true
}

// commit appends exchange unless the turn was superseded first. Marking the
// turn committed under the lock is the commit point; the store write runs
// outside the lock and is waited for by any superseding intent.
func (c *TurnController) commit(turn *pendingTurn, exchange domain.Exchange) error {
	c.mu.Lock()
	if c.pending != turn || turn.cancelled() {
		c.mu.Unlock()
		return domain.ErrCancelled
	}
	turn.committed = true
	c.mu.Unlock()

	if err := c.store.Append(context.WithoutCancel(turn.ctx), exchange); err != nil {
		logx.Error().Err(err).Str("exchange", exchange.ID).Msg("failed to commit exchange")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.events.ExchangeCommitted(exchange)
	if c.pending != turn || turn.cancelled() {
		return domain.ErrCancelled
	}
	turn.state = domain.TurnStateSynthesizing
	c.setStateLocked(domain.TurnStateSynthesizing, domain.ReasonSynthesizing)
	return nil
}

// speak synthesizes and plays the committed answer. The exchange is kept
// whatever happens here.
func (c *TurnController) speak(turn *pendingTurn, exchange domain.Exchange) (domain.TurnResult, error) {
	result := domain.TurnResult{Exchange: exchange}

	audio, err := c.synthesize(turn, exchange.AnswerText)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCancelled), turn.cancelled():
		return result, c.fail(turn, domain.ErrCancelled, "", "")
	case errors.Is(err, domain.ErrAuth):
		return result, c.fail(turn, err, domain.ErrorCodeAuth, domain.ReasonSynthesisAuthFailed)
	default:
		logx.Warn().Err(err).Str("exchange", exchange.ID).Msg("speech unavailable, completing as text")
		result.Reason = domain.ReasonTextOnly
		return result, c.complete(turn, domain.ReasonTextOnly, nil)
	}

	c.mu.Lock()
	if c.pending != turn || turn.cancelled() {
		c.mu.Unlock()
		return result, c.fail(turn, domain.ErrCancelled, "", "")
	}
	c.mu.Unlock()

	playback, err := c.player.Play(context.WithoutCancel(turn.ctx), audio)
	if err != nil {
		logx.Warn().Err(err).Msg("playback failed, completing as text")
		result.Reason = domain.ReasonTextOnly
		return result, c.complete(turn, domain.ReasonTextOnly, nil)
	}

	result.Spoken = true
	result.Reason = domain.ReasonResponding
	if err := c.complete(turn, domain.ReasonResponding, playback); err != nil {
		result.Spoken = false
		return result, err
	}
	return result, nil
}

// synthesize returns speech for text, retrying rate-limited calls per policy.
func (c *TurnController) synthesize(turn *pendingTurn, text string) ([]byte, error) {
	if c.speech != nil {
		if audio, ok := c.speech.Get(turn.language, text); ok {
			logx.Debug().Int("bytes", len(audio)).Msg("speech cache hit")
			return audio, nil
		}
	}

	failures := 0
	for {
		audio, err := c.assistant.SynthesizeSpeech(turn.ctx, text, turn.language)
		if err == nil {
			if c.speech != nil {
				c.speech.Put(turn.language, text, audio)
			}
			return audio, nil
		}
		if turn.cancelled() {
			return nil, domain.ErrCancelled
		}

		var rateLimit *domain.RateLimitError
		if !errors.As(err, &rateLimit) {
			return nil, err
		}
		failures++
		decision := c.policy.Decide(rateLimit, failures)
		if !decision.Retry {
			logx.Warn().Int("attempts", failures).Msg("speech synthesis still rate limited, giving up")
			return nil, err
		}

		logx.Info().Int("attempt", failures).Dur("delay", decision.Delay).Msg("speech synthesis rate limited, retrying")
		if !c.advance(turn, domain.TurnStateSynthesizing, domain.ReasonRetryingSynthesis) {
			return nil, domain.ErrCancelled
		}
		if err := c.sleep(turn.ctx, decision.Delay); err != nil {
			return nil, domain.ErrCancelled
		}
	}
}

// complete finishes a successful turn. playback, when set, becomes the
// controller's current playback.
func (c *TurnController) complete(turn *pendingTurn, reason domain.StatusReason, playback ports.Playback) error {
	c.mu.Lock()
	if c.pending != turn {
		c.mu.Unlock()
		if playback != nil {
			_ = playback.Stop()
		}
		return domain.ErrCancelled
	}
	c.pending = nil
	turn.cancel()
	if playback != nil {
		c.playback = playback
		go c.forgetPlayback(playback)
	}
	c.setStateLocked(domain.TurnStateIdle, reason)
	c.mu.Unlock()
	return nil
}

func (c *TurnController) forgetPlayback(playback ports.Playback) {
	<-playback.Done()
	c.mu.Lock()
	if c.playback == playback {
		c.playback = nil
	}
	c.mu.Unlock()
}
