package compose

import (
	"fmt"
	"sort"
	"strings"
)

// ServiceNode is one entry in the dependency graph handed to ResolveOrder.
// Nodes must be passed in declaration order; that order is the tie-break.
type ServiceNode struct {
	Name      string
	DependsOn []string
}

// UnresolvedError reports the services that could not be scheduled. A
// dependency cycle and a dependency naming an undeclared service both end up
// here; the leftover set is the diagnostic either way.
type UnresolvedError struct {
	Remaining []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("deployment order unresolved (cycle or missing dependency): %s",
		strings.Join(e.Remaining, ", "))
}

// DeploymentOrder resolves the document's services into a start order where
// every dependency precedes its dependents.
func (d *Document) DeploymentOrder() ([]string, error) {
	nodes := make([]ServiceNode, 0, len(d.Services))
	for _, svc := range d.Services {
		nodes = append(nodes, ServiceNode{Name: svc.Name, DependsOn: svc.DependsOn})
	}
	return ResolveOrder(nodes)
}

// ResolveOrder runs Kahn's algorithm over the nodes. A node's unmet count is
// the number of its own (deduplicated) dependencies; ready nodes are drained
// lowest declaration index first, so the result is deterministic for a given
// input order.
func ResolveOrder(nodes []ServiceNode) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", n.Name)
		}
		index[n.Name] = i
	}

	unmet := make([]int, len(nodes))
	dependents := make(map[string][]int)
	for i, n := range nodes {
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			unmet[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	var ready []int
	for i := range nodes {
		if unmet[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(nodes))
	scheduled := make([]bool, len(nodes))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, nodes[i].Name)
		scheduled[i] = true
		for _, j := range dependents[nodes[i].Name] {
			unmet[j]--
			if unmet[j] == 0 {
				at := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[at+1:], ready[at:])
				ready[at] = j
			}
		}
	}

	if len(order) != len(nodes) {
		var remaining []string
		for i, n := range nodes {
			if !scheduled[i] {
				remaining = append(remaining, n.Name)
			}
		}
		return nil, &UnresolvedError{Remaining: remaining}
	}
	return order, nil
}
