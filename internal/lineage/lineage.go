// Package lineage assembles the staged provenance graph for a target
// attribute from mapping and job state.
package lineage

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

// Assembler derives lineage graphs. It holds no state of its own; every
// graph is computed from the store at call time.
type Assembler struct {
	store store.Store
}

func New(st store.Store) *Assembler {
	return &Assembler{store: st}
}

// Assemble builds the lineage graph for one target attribute. Stage 0 holds
// one node per distinct contributing source system, the middle stage one
// node per distinct transformation text, and the final stage the target
// itself. An unmapped attribute is NotFound. Node and edge order is fully
// determined by the data, so repeated assemblies without intervening
// mapping or job writes produce identical graphs.
func (a *Assembler) Assemble(ctx context.Context, targetAttributeID string) (*model.LineageGraph, error) {
	tgt, err := a.store.GetTargetAttribute(ctx, targetAttributeID)
	if err != nil {
		return nil, err
	}

	mappings, err := a.store.ListMappings(ctx, store.MappingFilter{TargetAttributeID: tgt.ID})
	if err != nil {
		return nil, eris.Wrap(err, "lineage: list mappings")
	}
	if len(mappings) == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "no mappings for target attribute %s", tgt.ID)
	}

	type sourceGroup struct {
		system *model.SourceSystem
		attrs  []model.LineageAttribute
	}
	groups := map[string]*sourceGroup{}        // by source system id
	transformMappings := map[string][]string{} // transformation text -> source system ids
	direct := map[string]bool{}                // source system ids with an untransformed mapping

	for _, m := range mappings {
		attr, err := a.store.GetSourceAttribute(ctx, m.SourceAttributeID)
		if err != nil {
			return nil, err
		}
		g, ok := groups[attr.SourceSystemID]
		if !ok {
			sys, err := a.store.GetSourceSystem(ctx, attr.SourceSystemID)
			if err != nil {
				return nil, err
			}
			g = &sourceGroup{system: sys}
			groups[attr.SourceSystemID] = g
		}
		g.attrs = append(g.attrs, model.LineageAttribute{
			SourceAttributeID: attr.ID,
			Name:              attr.Name,
			MappingID:         m.ID,
			MappingStatus:     m.Status,
		})
		if m.TransformationLogic != "" {
			transformMappings[m.TransformationLogic] = append(transformMappings[m.TransformationLogic], attr.SourceSystemID)
		} else {
			direct[attr.SourceSystemID] = true
		}
	}

	// Stage 0: source systems, sorted by name for stable output.
	systems := make([]*sourceGroup, 0, len(groups))
	for _, g := range groups {
		systems = append(systems, g)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i].system.Name < systems[j].system.Name })

	sourceStage := model.LineageStage{Index: 0}
	for _, g := range systems {
		sort.Slice(g.attrs, func(i, j int) bool { return g.attrs[i].Name < g.attrs[j].Name })
		node := model.LineageNode{
			ID:         "source:" + g.system.ID,
			Kind:       model.LineageSource,
			Label:      g.system.Name,
			Attributes: g.attrs,
		}
		if job, err := a.store.LatestJobForSource(ctx, g.system.ID); err != nil {
			return nil, err
		} else if job != nil {
			node.LastJobID = job.ID
			node.LastJobStatus = job.Status
		}
		sourceStage.Nodes = append(sourceStage.Nodes, node)
	}

	graph := &model.LineageGraph{TargetAttributeID: tgt.ID}
	graph.Stages = append(graph.Stages, sourceStage)

	targetNodeID := "target:" + tgt.ID

	// Middle stage: distinct transformation texts, merged on identical text.
	texts := make([]string, 0, len(transformMappings))
	for text := range transformMappings {
		texts = append(texts, text)
	}
	sort.Strings(texts)

	if len(texts) > 0 {
		transformStage := model.LineageStage{Index: 1}
		for _, text := range texts {
			nodeID := "transform:" + text
			transformStage.Nodes = append(transformStage.Nodes, model.LineageNode{
				ID:    nodeID,
				Kind:  model.LineageTransform,
				Label: text,
			})
			for _, sysID := range dedupeSorted(transformMappings[text]) {
				graph.Edges = append(graph.Edges, model.LineageEdge{From: "source:" + sysID, To: nodeID})
			}
			graph.Edges = append(graph.Edges, model.LineageEdge{From: nodeID, To: targetNodeID})
		}
		graph.Stages = append(graph.Stages, transformStage)
	}

	// Routing is per mapping: a system whose untransformed mapping feeds the
	// target keeps its direct edge even when another of its mappings goes
	// through a transform node.
	for _, g := range systems {
		if direct[g.system.ID] {
			graph.Edges = append(graph.Edges, model.LineageEdge{From: "source:" + g.system.ID, To: targetNodeID})
		}
	}

	graph.Stages = append(graph.Stages, model.LineageStage{
		Index: len(graph.Stages),
		Nodes: []model.LineageNode{{
			ID:          targetNodeID,
			Kind:        model.LineageTarget,
			Label:       tgt.Name,
			SourceCount: len(systems),
		}},
	})

	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].From != graph.Edges[j].From {
			return graph.Edges[i].From < graph.Edges[j].From
		}
		return graph.Edges[i].To < graph.Edges[j].To
	})
	return graph, nil
}

func dedupeSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
