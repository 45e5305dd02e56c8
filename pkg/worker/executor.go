package worker

import (
	"context"

	"github.com/finsight-ai/finsight/pkg/agent"
	"github.com/finsight-ai/finsight/pkg/config"
	"github.com/finsight-ai/finsight/pkg/models"
)

// CLIExecutor executes jobs by spawning the agent CLI via a fresh Runner
// per job.
type CLIExecutor struct {
	cfg      config.AgentConfig
	sink     agent.EventSink
	redisURL string
}

// NewCLIExecutor builds the production executor.
func NewCLIExecutor(cfg config.AgentConfig, sink agent.EventSink, redisURL string) *CLIExecutor {
	return &CLIExecutor{cfg: cfg, sink: sink, redisURL: redisURL}
}

// Execute runs the CLI for one job.
func (e *CLIExecutor) Execute(ctx context.Context, job *models.Job, history []models.ChatMessage) (*agent.Result, error) {
	runner := agent.NewRunner(e.cfg, e.sink, e.redisURL, job.JobID)
	return runner.Run(ctx, job.Query, history)
}
