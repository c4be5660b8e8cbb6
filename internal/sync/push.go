package sync

import (
	"context"
	"time"

	"fieldvisit/internal/model"
)

// pushBatch последовательно отправляет записи на сервер. Каждая запись
// проходит полный цикл подготовки и передачи до начала следующей - это
// ограничивает пиковую память одним набором фотографий и изолирует сбои по
// записям. Ошибка одной записи не прерывает пакет.
func (e *Engine) pushBatch(ctx context.Context, recs []*model.VisitRecord) (int, []RecordError) {
	var errs []RecordError
	pushed := 0

	for _, rec := range recs {
		if err := e.pushOne(ctx, rec); err != nil {
			errs = append(errs, RecordError{
				RecordID:  rec.ID,
				Operation: "push",
				Error:     err.Error(),
				Timestamp: time.Now(),
			})

			e.log.Error("push failed",
				"record_id", rec.ID,
				"error", err,
			)

			rec.LastSyncError = err.Error()
			if uerr := e.store.Update(ctx, rec); uerr != nil {
				e.log.Warn("failed to record push error", "record_id", rec.ID, "error", uerr)
			}
			if qerr := e.queue.Enqueue(ctx, rec.ID); qerr != nil {
				e.log.Warn("failed to enqueue record", "record_id", rec.ID, "error", qerr)
			}
			continue
		}

		pushed++
	}

	// Статистика пакета сохраняется одной мутацией
	if err := e.ledger.Mutate(ctx, func(s *Stats) {
		s.SuccessfulSyncs += pushed
		if pushed > 0 {
			s.LastSuccessfulSync = time.Now()
		}
		s.FailedSyncs += len(errs)
		if len(errs) > 0 {
			s.LastError = errs[len(errs)-1].Error
		}
	}); err != nil {
		e.log.Warn("failed to persist sync stats", "error", err)
	}

	return pushed, errs
}

// pushOne готовит и передает одну запись. Чанки уходят по одному запросу,
// строго в порядке эмиссии конвейера - сервер собирает их в том же порядке.
func (e *Engine) pushOne(ctx context.Context, rec *model.VisitRecord) error {
	payload, err := e.prep.Prepare(rec)
	if err != nil {
		return err
	}

	if payload.Chunked() {
		for _, chunk := range payload.Chunks {
			if err := e.transport.PushChunk(ctx, chunk); err != nil {
				return err
			}
		}
	} else {
		if err := e.transport.PushRecord(ctx, payload.Record); err != nil {
			return err
		}
	}

	rec.Synced = true
	rec.LastSyncError = ""
	if err := e.store.Update(ctx, rec); err != nil {
		return err
	}
	if err := e.queue.Dequeue(ctx, rec.ID); err != nil {
		e.log.Warn("failed to dequeue synced record", "record_id", rec.ID, "error", err)
	}

	e.log.Debug("record pushed", "record_id", rec.ID, "chunked", payload.Chunked())
	return nil
}
