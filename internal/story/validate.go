package story

import "fmt"

// Validate runs static checks over the graph and returns human-readable
// problems. It never executes node logic.
func (g *Graph) Validate() []string {
	var problems []string

	for _, n := range g.nodes {
		problems = append(problems, n.Validate()...)
	}

	for _, c := range g.connections {
		out, in := g.byID[c.OutputNodeID], g.byID[c.InputNodeID]
		switch {
		case out == nil || in == nil:
			problems = append(problems, fmt.Sprintf("connection %s references a missing node", c.ID))
		case out.Base().OutputPort(c.OutputPortID) == nil:
			problems = append(problems, fmt.Sprintf("connection %s references missing output port %s on %s",
				c.ID, c.OutputPortID, out.Base().DisplayName()))
		case in.Base().Port(c.InputPortID) == nil:
			problems = append(problems, fmt.Sprintf("connection %s references missing input port %s on %s",
				c.ID, c.InputPortID, in.Base().DisplayName()))
		}
	}

	starts := 0
	for _, n := range g.nodes {
		if n.Kind() == KindStart {
			starts++
		}
	}
	switch {
	case starts == 0:
		problems = append(problems, "graph has no start node")
	case starts > 1 && g.EntryNodeID == "":
		problems = append(problems, fmt.Sprintf("graph has %d start nodes and no entry node", starts))
	}
	if g.EntryNodeID != "" && g.byID[g.EntryNodeID] == nil {
		problems = append(problems, fmt.Sprintf("entry node %s not found", g.EntryNodeID))
	}

	if start := g.GetStartNode(); start != nil {
		reached := g.reachableFrom(start.Base().ID)
		for _, n := range g.nodes {
			if !reached[n.Base().ID] {
				problems = append(problems, fmt.Sprintf("node %s is unreachable from the start node", n.Base().DisplayName()))
			}
		}
	}

	for _, n := range g.nodes {
		for _, p := range n.Base().Outputs() {
			if g.GetConnectedNode(n.Base().ID, p.ID) == nil {
				problems = append(problems, fmt.Sprintf("warning: output %s of node %s is not connected",
					p.ID, n.Base().DisplayName()))
			}
		}
	}

	return problems
}

// reachableFrom walks connections breadth-first from nodeID.
func (g *Graph) reachableFrom(nodeID string) map[string]bool {
	visited := map[string]bool{nodeID: true}
	queue := []string{nodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := g.byID[id]
		if n == nil {
			continue
		}
		for _, p := range n.Base().Outputs() {
			for _, c := range g.links[portKey{id, p.ID}] {
				if c.OutputNodeID != id || visited[c.InputNodeID] {
					continue
				}
				visited[c.InputNodeID] = true
				queue = append(queue, c.InputNodeID)
			}
		}
	}
	return visited
}
