package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/env-monitor/internal/protocol"
)

// MessageSource is the consuming side of a topic
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AlertSink stores decoded alert events
type AlertSink interface {
	InsertAlertEvents(ctx context.Context, events []protocol.AlertEvent) error
}

// BatchWriter consumes alert events and writes them to the sink in batches.
// Offsets are committed only after the sink accepts the batch.
type BatchWriter struct {
	source        MessageSource
	sink          AlertSink
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source MessageSource, sink AlertSink, batchSize int, flushInterval time.Duration, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		source:        source,
		sink:          sink,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the sink
func (bw *BatchWriter) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)
	msgCh := make(chan kafka.Message, 10)

	bw.wg.Add(2)
	go bw.consume(ctx, msgCh)
	go bw.run(ctx, msgCh)
}

// Stop flushes what has been consumed and waits for the goroutines to exit
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.cancel()
	bw.wg.Wait()
}

func (bw *BatchWriter) consume(ctx context.Context, msgCh chan<- kafka.Message) {
	defer bw.wg.Done()

	for {
		msg, err := bw.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			bw.logger.Error("consumer error", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (bw *BatchWriter) run(ctx context.Context, msgCh <-chan kafka.Message) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bw.stopCh:
			batch = drain(msgCh, batch)
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				bw.flush(flushCtx, batch)
				cancel()
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.logger.Debug("flush interval reached", "messages", len(batch))
				batch = bw.flush(ctx, batch)
			}

		case msg := <-msgCh:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.logger.Debug("batch full", "messages", len(batch))
				batch = bw.flush(ctx, batch)
			}
		}
	}
}

func drain(msgCh <-chan kafka.Message, batch []kafka.Message) []kafka.Message {
	for {
		select {
		case msg := <-msgCh:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
}

// flush writes the batch and returns what must be retried
func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) []kafka.Message {
	events := make([]protocol.AlertEvent, 0, len(batch))
	for _, msg := range batch {
		ev, err := protocol.DecodeAlertEvent(msg.Value)
		if err != nil {
			// Undecodable messages are committed with the batch and dropped
			bw.logger.Warn("skipping undecodable message",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		events = append(events, *ev)
	}

	if err := bw.sink.InsertAlertEvents(ctx, events); err != nil {
		bw.logger.Error("failed to write batch, will retry", "messages", len(batch), "error", err)
		return batch
	}

	if err := bw.source.Commit(ctx, batch...); err != nil {
		bw.logger.Error("failed to commit offsets", "error", err)
	}

	bw.logger.Info("flushed batch", "events", len(events))
	return nil
}
