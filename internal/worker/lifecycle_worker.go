package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docchat/internal/model"
	"docchat/internal/platform/rabbitmq"
)

var errMalformedEvent = errors.New("malformed lifecycle event")

// ReportStore persists inconsistency reports.
type ReportStore interface {
	Create(report *model.InconsistencyReport) error
}

// LifecycleWorker consumes document lifecycle events and records every event that
// leaves a document in one store only.
type LifecycleWorker struct {
	conn      *amqp.Connection
	reports   ReportStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLifecycleWorker(conn *amqp.Connection, reports ReportStore, queueName string) *LifecycleWorker {
	return &LifecycleWorker{
		conn:      conn,
		reports:   reports,
		queueName: queueName,
	}
}

func (w *LifecycleWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"docchat-lifecycle-worker",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				err := w.Handle(d.Body)
				switch {
				case errors.Is(err, errMalformedEvent):
					log.Printf("worker decode lifecycle event failed: %v", err)
					_ = d.Nack(false, false)
				case err != nil:
					log.Printf("worker persist inconsistency report failed: %v", err)
					_ = d.Nack(false, !d.Redelivered)
				default:
					_ = d.Ack(false)
				}
			}
		}
	}()

	return nil
}

// Handle processes one encoded event.
func (w *LifecycleWorker) Handle(body []byte) error {
	var event model.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.ID == "" || event.Document == "" {
		return fmt.Errorf("%w: missing id or document", errMalformedEvent)
	}

	if !event.Inconsistent() {
		log.Printf("lifecycle %s %q task=%s", event.Kind, event.Document, event.TaskID)
		return nil
	}

	log.Printf("lifecycle %s %q task=%s left inconsistent: %s", event.Kind, event.Document, event.TaskID, event.Reason)
	return w.reports.Create(reportFromEvent(event))
}

func (w *LifecycleWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func reportFromEvent(event model.LifecycleEvent) *model.InconsistencyReport {
	return &model.InconsistencyReport{
		EventID:    event.ID,
		Kind:       string(event.Kind),
		Document:   event.Document,
		TaskID:     event.TaskID,
		Side:       failedSide(event),
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt,
	}
}

// failedSide names the side whose operation failed.
func failedSide(event model.LifecycleEvent) string {
	if event.Kind == model.EventIndexFailed {
		return "index"
	}
	storeFailed := event.StoreResult != nil && event.StoreResult.Status == model.LegErr
	indexFailed := event.IndexResult != nil && event.IndexResult.Status == model.LegErr
	switch {
	case storeFailed && indexFailed:
		return "both"
	case storeFailed:
		return "store"
	default:
		return "index"
	}
}
