package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fintel-ai/fintel/core/state"
	"github.com/fintel-ai/fintel/providers/observability"
)

// Execute runs the topology against the given aggregate. Nodes execute level
// by level in topological order; nodes within the same level run in parallel
// (bounded by WithMaxConcurrency). After each node completes, its partial
// update is merged into the aggregate under a single mutex before any
// dependent node's snapshot is taken, so a node always observes the fully
// merged output of its upstream dependencies.
//
// For accumulate fields, the order among concurrently completing nodes is
// whatever order their merges are applied in — accepted non-determinism.
// Exclusive fields have one writer each, so their values are deterministic
// for a fixed topology regardless of interleaving.
//
// On context cancellation Execute stops starting nodes and returns the
// context error; the aggregate holds the best available (possibly partial)
// result. Exceeding the configured step budget returns an
// IterationLimitError.
//
// The aggregate must be fresh for this request; Execute mutates it in place.
func (g *Graph) Execute(ctx context.Context, aggregate *state.Aggregate) error {
	logger := g.config.logger
	start := time.Now()

	logger.Info(ctx, "pipeline started",
		observability.String("ticker", aggregate.Ticker),
		observability.Int("nodes", len(g.nodes)),
	)

	// mergeMu serializes both merge application and snapshot reads.
	var mergeMu sync.Mutex

	for levelIndex, levelNodeIDs := range g.levels {
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "pipeline canceled, returning partial aggregate",
				observability.Int("level", levelIndex),
				observability.Error(err),
			)
			return fmt.Errorf("canceled before level %d: %w", levelIndex, err)
		}

		if aggregate.IterationCount+len(levelNodeIDs) > g.config.maxIterations {
			return &IterationLimitError{Limit: g.config.maxIterations}
		}

		if err := g.executeLevel(ctx, levelNodeIDs, aggregate, &mergeMu); err != nil {
			return err
		}

		// A cancel that lands mid-level skips not-yet-started siblings
		// without an error of their own; surface it here so a level never
		// completes "successfully" with silently missing nodes.
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "pipeline canceled, returning partial aggregate",
				observability.Int("level", levelIndex),
				observability.Error(err),
			)
			return fmt.Errorf("canceled during level %d: %w", levelIndex, err)
		}
	}

	logger.Info(ctx, "pipeline completed",
		observability.String("ticker", aggregate.Ticker),
		observability.Duration("duration", time.Since(start)),
		observability.Int("iterations", aggregate.IterationCount),
	)

	return nil
}

// executeLevel runs all nodes of one topological level, in parallel when the
// level has more than one node, then reports the first node defect if any.
func (g *Graph) executeLevel(ctx context.Context, nodeIDs []string, aggregate *state.Aggregate, mergeMu *sync.Mutex) error {
	if len(nodeIDs) == 1 {
		return g.executeNode(ctx, nodeIDs[0], aggregate, mergeMu)
	}

	var waitGroup sync.WaitGroup
	errorChannel := make(chan error, len(nodeIDs))

	var semaphore chan struct{}
	if g.config.maxConcurrency > 0 {
		semaphore = make(chan struct{}, g.config.maxConcurrency)
	}

	for _, nodeID := range nodeIDs {
		waitGroup.Add(1)

		go func(executingNodeID string) {
			defer waitGroup.Done()

			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					return
				}
			}

			if ctx.Err() != nil {
				return
			}

			if err := g.executeNode(ctx, executingNodeID, aggregate, mergeMu); err != nil {
				errorChannel <- err
			}
		}(nodeID)
	}

	waitGroup.Wait()
	close(errorChannel)

	for err := range errorChannel {
		return err
	}
	return nil
}

// executeNode snapshots the node's declared dependencies, runs it, and
// merges the resulting update. Snapshot and merge both happen under the
// merge mutex; the node's own work does not.
func (g *Graph) executeNode(ctx context.Context, nodeID string, aggregate *state.Aggregate, mergeMu *sync.Mutex) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("node %q not started: %w", nodeID, err)
	}

	graphNode := g.nodes[nodeID]
	logger := g.config.logger

	mergeMu.Lock()
	aggregate.IterationCount++
	snapshot := aggregate.Snapshot(graphNode.impl.Reads()...)
	mergeMu.Unlock()

	logger.Debug(ctx, "node started", observability.String("node", nodeID))
	nodeStart := time.Now()

	update, err := graphNode.impl.Run(ctx, snapshot)
	duration := time.Since(nodeStart)

	if err != nil {
		// Nodes contain collaborator failures themselves; an escaped error
		// is a contract violation and fails the request.
		logger.Error(ctx, "node returned error in violation of containment contract",
			observability.String("node", nodeID),
			observability.Error(err),
		)
		return fmt.Errorf("node %q failed: %w", nodeID, err)
	}

	mergeMu.Lock()
	mergeErr := aggregate.Apply(update)
	mergeMu.Unlock()

	if mergeErr != nil {
		return fmt.Errorf("merging update from node %q: %w", nodeID, mergeErr)
	}

	logger.Info(ctx, "node completed",
		observability.String("node", nodeID),
		observability.Duration("duration", duration),
	)

	return nil
}
