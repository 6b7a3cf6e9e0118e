package handler

import (
	"audio-service/apperror"
	"audio-service/dto"
	"audio-service/service"
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ServiceDependencies struct {
	AudioService service.AudioService
}

// AnalysisHandler records the results the transcription pipeline reports
// for an upload. Messages for records that no longer exist are dropped.
func AnalysisHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var analyzed dto.AudioAnalyzedMessage
	if err := json.Unmarshal(msg.Body, &analyzed); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal audio analyzed message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Int64("audio_id", analyzed.AudioId).
		Int("duration_seconds", analyzed.DurationSeconds).
		Msg("received audio analyzed message")

	err := deps.AudioService.RecordAnalysis(ctx, analyzed)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Int64("audio_id", analyzed.AudioId).Msg("audio file gone, dropping analysis")
			return nil
		}
		return err
	}

	return nil
}
