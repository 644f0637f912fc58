package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	nodex "github.com/MazarSayed/stock-platform/agent/nodes"
)

const supervisorNode = "supervisor"

// compileConversationGraph wires the star topology:
//
//	START -> supervisor -(branch on Next)-> {specialist | END}
//	specialist -> supervisor
func (o *Orchestrator) compileConversationGraph(
	ctx context.Context,
) (compose.Runnable[*contractx.ConversationState, *contractx.ConversationState], error) {
	graph := compose.NewGraph[*contractx.ConversationState, *contractx.ConversationState]()

	router := o.models.Router()
	if err := graph.AddLambdaNode(supervisorNode,
		compose.InvokableLambda(func(ctx context.Context, in *contractx.ConversationState) (*contractx.ConversationState, error) {
			return nodex.Supervise(ctx, in, router, o.members)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", supervisorNode, err)
	}

	endNodes := map[string]bool{compose.END: true}
	for _, name := range o.members {
		name := name
		specialist, ok := o.models.Specialist(name)
		if !ok || specialist == nil {
			return nil, fmt.Errorf("%w: specialist %s is not registered", contractx.ErrValidation, name)
		}
		if err := graph.AddLambdaNode(string(name),
			compose.InvokableLambda(func(ctx context.Context, in *contractx.ConversationState) (*contractx.ConversationState, error) {
				return nodex.RunSpecialist(ctx, in, name, specialist)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
		endNodes[string(name)] = true
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *contractx.ConversationState) (string, error) {
			return nodex.NextNode(in, compose.END)
		},
		endNodes,
	)
	if err := graph.AddBranch(supervisorNode, branch); err != nil {
		return nil, fmt.Errorf("add branch %s: %w", supervisorNode, err)
	}

	edges := [][2]string{{compose.START, supervisorNode}}
	for _, name := range o.members {
		edges = append(edges, [2]string{string(name), supervisorNode})
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("orchestrator.conversation"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(o.maxRunSteps),
	)
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
