package model

// LineageNodeKind distinguishes the three kinds of lineage graph nodes.
type LineageNodeKind string

const (
	LineageSource    LineageNodeKind = "source"
	LineageTransform LineageNodeKind = "transform"
	LineageTarget    LineageNodeKind = "target"
)

// LineageAttribute is one source attribute contributing to a lineage node,
// with its mapping's current status.
type LineageAttribute struct {
	SourceAttributeID string        `json:"source_attribute_id"`
	Name              string        `json:"name"`
	MappingID         string        `json:"mapping_id"`
	MappingStatus     MappingStatus `json:"mapping_status"`
}

// LineageNode is one node in the staged lineage graph.
type LineageNode struct {
	ID   string          `json:"id"`
	Kind LineageNodeKind `json:"kind"`
	// Label is the source system name, the transformation text, or the
	// target attribute name depending on Kind.
	Label      string             `json:"label"`
	Attributes []LineageAttribute `json:"attributes,omitempty"`
	// SourceCount is set on the target node: the number of distinct
	// contributing source systems.
	SourceCount int `json:"source_count,omitempty"`
	// LastJobID/LastJobStatus reference the most recent job run for a
	// source node's system, when job history exists.
	LastJobID     string    `json:"last_job_id,omitempty"`
	LastJobStatus JobStatus `json:"last_job_status,omitempty"`
}

// LineageEdge connects two nodes by id.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageStage is one ordered layer of the graph: stage 0 holds source
// systems, the final stage holds the target attribute, and any stage in
// between holds distinct transformation nodes.
type LineageStage struct {
	Index int           `json:"index"`
	Nodes []LineageNode `json:"nodes"`
}

// LineageGraph is the derived, never-persisted lineage of one target
// attribute. Assembly is a pure function of mapping and job state, so two
// assemblies without intervening writes are identical.
type LineageGraph struct {
	TargetAttributeID string         `json:"target_attribute_id"`
	Stages            []LineageStage `json:"stages"`
	Edges             []LineageEdge  `json:"edges"`
}
