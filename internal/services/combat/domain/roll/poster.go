package roll

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LogPoster writes roll messages to a structured log.
type LogPoster struct {
	Logger zerolog.Logger
}

// PostMessage logs msg.
func (p LogPoster) PostMessage(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Logger.Info().
		Str("participant_id", msg.ParticipantID).
		Str("alias", msg.Alias).
		Str("visibility", string(msg.Visibility)).
		Str("formula", msg.Roll.Formula).
		Int("total", msg.Roll.Total).
		Msg("initiative rolled")
	return nil
}

// Posters posts a message to several posters and joins their errors.
type Posters []Poster

// PostMessage calls every poster in order.
func (ps Posters) PostMessage(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PostMessage(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
