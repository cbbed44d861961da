package history

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pipeline"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pubsub"
)

// Worker records a history entry for every build event published by
// the pipeline.
type Worker struct {
	db     Store
	logger log.Logger

	buildEvents <-chan pubsub.Event
}

// NewWorker subscribes to the build topic before returning, so an
// event published before Run is scheduled is still delivered.
func NewWorker(ctx context.Context, db Store, ps pubsub.PublishSubscriber, logger log.Logger) (*Worker, error) {
	const subscription = "history_worker"
	buildEvents, err := ps.Subscribe(ctx, subscription, pipeline.BuildTopic)
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing %s to %s", subscription, pipeline.BuildTopic)
	}
	return &Worker{
		db:          db,
		logger:      logger,
		buildEvents: buildEvents,
	}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.buildEvents:
			if err := w.saveFromEvent(ctx, ev.Message); err != nil {
				level.Info(w.logger).Log(
					"msg", "save build history from event",
					"err", err,
				)
			}
		}
	}
}

func (w *Worker) saveFromEvent(ctx context.Context, message []byte) error {
	var ev pipeline.Event
	if err := pipeline.UnmarshalEvent(message, &ev); err != nil {
		return err
	}
	record := &Record{
		Timestamp: ev.Time,
		Report:    ev.Report,
	}
	return w.db.Save(ctx, record)
}
