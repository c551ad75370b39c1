package adapter

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
)

// Direct issues the literal SQL query against the relational backend.
// Duration covers send to full result materialization.
type Direct struct {
	log logrus.FieldLogger
	db  backend.Relational
}

// Compile-time interface check.
var _ Executor = (*Direct)(nil)

// NewDirect creates the direct-query adapter.
func NewDirect(log logrus.FieldLogger, db backend.Relational) *Direct {
	return &Direct{
		log: log.WithField("component", "adapter.direct"),
		db:  db,
	}
}

// Path implements Executor.
func (d *Direct) Path() bench.Path {
	return bench.PathDirect
}

// Execute implements Executor.
func (d *Direct) Execute(ctx context.Context, def *bench.TestDefinition) bench.Sample {
	return timed(ctx, bench.PathDirect, def, func(cctx context.Context) (int, error) {
		return d.db.Query(cctx, def.SQL, def.Params)
	})
}
