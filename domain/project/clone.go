package project

// Deep copies. Every slice and map in the returned value is freshly
// allocated so that mutating the copy never reaches the original.

// Clone returns a deep copy of the whole project
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.SecondaryObjectives = cloneStrings(p.SecondaryObjectives)
	out.Constraints = cloneStrings(p.Constraints)
	out.Members = append([]Member(nil), p.Members...)
	out.DataPool = cloneDataPool(p.DataPool)
	out.KnowledgeGraph = p.KnowledgeGraph.Clone()
	out.CoScientistSteps = cloneSteps(p.CoScientistSteps)
	if p.Checkpoints != nil {
		out.Checkpoints = make([]Checkpoint, len(p.Checkpoints))
		for i, cp := range p.Checkpoints {
			out.Checkpoints[i] = cp.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the checkpoint
func (c Checkpoint) Clone() Checkpoint {
	out := c
	out.DataPool = cloneDataPool(c.DataPool)
	out.KnowledgeGraph = c.KnowledgeGraph.Clone()
	out.CoScientistSteps = cloneSteps(c.CoScientistSteps)
	return out
}

// Clone returns a deep copy of the graph
func (g KnowledgeGraph) Clone() KnowledgeGraph {
	out := KnowledgeGraph{
		Nodes:  make([]GraphNode, len(g.Nodes)),
		Edges:  make([]GraphEdge, len(g.Edges)),
		Groups: append(make([]GraphGroup, 0, len(g.Groups)), g.Groups...),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of the node
func (n GraphNode) Clone() GraphNode {
	out := n
	out.Notes = append(make([]Note, 0, len(n.Notes)), n.Notes...)
	out.Metadata = cloneMetadata(n.Metadata)
	return out
}

// Clone returns a deep copy of the edge
func (e GraphEdge) Clone() GraphEdge {
	out := e
	out.Metadata = cloneMetadata(e.Metadata)
	return out
}

// Clone returns a deep copy of the item
func (i DataPoolItem) Clone() DataPoolItem {
	out := i
	out.Comments = append(make([]Comment, 0, len(i.Comments)), i.Comments...)
	return out
}

// Clone returns a deep copy of the step
func (s CoScientistStep) Clone() CoScientistStep {
	out := s
	out.Attachments = append(make([]Attachment, 0, len(s.Attachments)), s.Attachments...)
	out.Comments = append(make([]Comment, 0, len(s.Comments)), s.Comments...)
	return out
}

func cloneDataPool(items []DataPoolItem) []DataPoolItem {
	out := make([]DataPoolItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneSteps(steps []CoScientistStep) []CoScientistStep {
	out := make([]CoScientistStep, len(steps))
	for i, s := range steps {
		out[i] = s.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

func cloneMetadata(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container shapes produced by JSON decoding;
// scalars are immutable and returned as is
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMetadata(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []string:
		return cloneStrings(t)
	case []float64:
		return append([]float64(nil), t...)
	default:
		return v
	}
}
