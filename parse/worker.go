package parse

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/subagent"
)

// WorkerHandler is the subagent.Handler run inside a worker: parse the unit
// directly and leave the payload where the coordinator asked for it.
func WorkerHandler(direct *DirectFrontend) subagent.Handler {
	return func(ctx context.Context, opts subagent.Options, log *zap.SugaredLogger) error {
		if opts.Output.Payload == "" {
			return errors.New("no payload path in worker options")
		}

		d := *direct
		d.Logger = log
		unit, err := d.Parse(ctx, opts)
		if err != nil {
			return err
		}
		if err := WritePayload(opts.Output.Payload, unit); err != nil {
			return err
		}

		log.Infow("Parsed unit", logger.FieldDecls, unit.Set.Len(), "diagnostics", len(unit.Diagnostics))
		return nil
	}
}
