package tcr

import (
	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// New builds the TCR variant of the workflow. It is the same graph with
// three differences: the TCR analysis tools are added to the agent's tool
// set, the domain guidance is appended to every schema description, and the
// schema is treated as static, so retries re-enter at query preparation
// instead of re-fetching it.
func New(cfg workflow.Config) (*workflow.Workflow, error) {
	if cfg.Prompts == nil {
		p, err := workflow.LoadPrompts()
		if err != nil {
			return nil, err
		}
		cfg.Prompts = p
	}

	cfg.Tools = append(cfg.Tools, Tools()...)
	if cfg.SchemaContext == "" {
		cfg.SchemaContext = cfg.Prompts.TCRContext
	}
	cfg.StaticSchema = true

	return workflow.New(cfg)
}
