package adapter

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
)

// Mediated issues the equivalent operation through the GraphQL layer. The
// protocol translation overhead is the quantity under study, so the timing
// deliberately includes it.
type Mediated struct {
	log logrus.FieldLogger
	gq  backend.GraphQL
}

// Compile-time interface check.
var _ Executor = (*Mediated)(nil)

// NewMediated creates the API-mediated adapter.
func NewMediated(log logrus.FieldLogger, gq backend.GraphQL) *Mediated {
	return &Mediated{
		log: log.WithField("component", "adapter.mediated"),
		gq:  gq,
	}
}

// Path implements Executor.
func (m *Mediated) Path() bench.Path {
	return bench.PathMediated
}

// Execute implements Executor.
func (m *Mediated) Execute(ctx context.Context, def *bench.TestDefinition) bench.Sample {
	return timed(ctx, bench.PathMediated, def, func(cctx context.Context) (int, error) {
		doc, err := m.gq.Execute(cctx, def.GraphQL, def.Params)
		if err != nil {
			return 0, err
		}

		return len(doc), nil
	})
}
