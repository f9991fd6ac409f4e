package shared

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

var errConcurrentChange = apperror.New(apperror.ErrCodeInvalidState, "состояние изменилось параллельно, обновите данные")

// LedgerError переводит ошибку хранилища в AppError. AppError пропускается как есть.
func LedgerError(err error, notFound *apperror.AppError) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if notFound != nil {
			return notFound
		}
		return apperror.Wrap(err, apperror.ErrCodeNotFound, "запись не найдена")
	case errors.Is(err, repository.ErrConflict):
		return errConcurrentChange
	case errors.Is(err, repository.ErrAlreadyExists):
		return apperror.Wrap(err, apperror.ErrCodeInvalidState, "состояние уже занято другой операцией")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "ошибка хранилища")
	}
}

// Publish отправляет накопленные события. Ошибки доставки только логируются.
func Publish(ctx context.Context, pub event.Publisher, batch *event.Batch) {
	if pub == nil || batch == nil {
		return
	}
	for _, evt := range batch.Events() {
		if err := pub.Publish(ctx, evt); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"event":     evt.Name,
				"entity_id": evt.EntityID,
			}).WithError(err).Warn("не удалось опубликовать событие")
		}
	}
}
