package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenflow/internal/compiler"
	"github.com/roach88/tokenflow/internal/ir"
)

// processDeploymentCreate validates the graphs of a deployment and assigns
// definition keys and versions. A graph identical to the latest version of
// its process is not versioned again.
func (e *Engine) processDeploymentCreate(_ context.Context, w *writers, cmd ir.Record) error {
	dep, ok := cmd.Value.(ir.DeploymentRecord)
	if !ok {
		return reject(ir.RejectionInvalidArgument, "expected a deployment record, got %T", cmd.Value)
	}
	if len(dep.Processes) == 0 {
		return reject(ir.RejectionInvalidArgument, "expected to deploy at least one process, but none was given")
	}

	seen := make(map[string]bool, len(dep.Processes))
	for _, p := range dep.Processes {
		if p.Graph == nil {
			return reject(ir.RejectionInvalidArgument, "expected process %q to carry a graph", p.BpmnProcessID)
		}
		p.Graph.Index()
		if seen[p.Graph.ID] {
			return reject(ir.RejectionInvalidArgument, "process %q is deployed twice", p.Graph.ID)
		}
		seen[p.Graph.ID] = true

		results := compiler.ValidateGraph(p.Graph)
		for _, warn := range results.Warnings() {
			slog.Warn("process validation warning", "process", p.Graph.ID, "warning", warn.Error())
		}
		if err := results.Err(); err != nil {
			return reject(ir.RejectionInvalidArgument, "process %q is invalid: %v", p.Graph.ID, err)
		}
	}

	depKey := w.nextKey()
	created := ir.DeploymentRecord{Processes: make([]ir.ProcessMetadata, 0, len(dep.Processes))}
	for _, p := range dep.Processes {
		checksum, err := ir.GraphChecksum(p.Graph)
		if err != nil {
			return fmt.Errorf("checksum process %q: %w", p.Graph.ID, err)
		}
		meta := ir.ProcessMetadata{BpmnProcessID: p.Graph.ID, Checksum: checksum, Graph: p.Graph}

		latest, exists := e.state.LatestDefinition(p.Graph.ID)
		switch {
		case exists && latest.Checksum == checksum:
			meta.Version = latest.Version
			meta.ProcessDefinitionKey = latest.Key
			meta.Graph = latest.Graph
		case exists:
			meta.Version = latest.Version + 1
			meta.ProcessDefinitionKey = w.nextKey()
		default:
			meta.Version = 1
			meta.ProcessDefinitionKey = w.nextKey()
		}
		created.Processes = append(created.Processes, meta)
	}
	return w.event(depKey, ir.IntentCreated, created)
}
