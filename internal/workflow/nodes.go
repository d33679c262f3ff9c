package workflow

import "fmt"

// Node is a state in the research graph.
type Node int

const (
	NodeClarify Node = iota + 1
	NodeAskUser
	NodeGenerateSubqueries
	NodePlan
	NodeGatherInfo
	NodeFilterResults
	NodeAnswer
	NodeCritique
	NodeAdditionalSearch
	NodeTerminal
)

var nodeNames = map[Node]string{
	NodeClarify:            "clarify",
	NodeAskUser:            "ask_user",
	NodeGenerateSubqueries: "generate_subqueries",
	NodePlan:               "plan",
	NodeGatherInfo:         "gather_info",
	NodeFilterResults:      "filter_results",
	NodeAnswer:             "answer",
	NodeCritique:           "critique",
	NodeAdditionalSearch:   "additional_search",
	NodeTerminal:           "terminal",
}

func (n Node) String() string {
	if name, ok := nodeNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Node(%d)", int(n))
}

// MarshalText implements encoding.TextMarshaler.
func (n Node) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Node) UnmarshalText(b []byte) error {
	for node, name := range nodeNames {
		if name == string(b) {
			*n = node
			return nil
		}
	}
	return fmt.Errorf("unknown node %q", string(b))
}

// owns returns the state fields node is allowed to write.
func (n Node) owns() Field {
	switch n {
	case NodeClarify:
		return FieldClarification
	case NodeAskUser:
		return FieldClarificationAnswer
	case NodeGenerateSubqueries:
		return FieldSubqueries
	case NodePlan:
		return FieldPlan
	case NodeGatherInfo:
		return FieldRawResults
	case NodeFilterResults:
		return FieldRelevantResults
	case NodeAnswer:
		return FieldAnswer
	case NodeCritique:
		return FieldCritique | FieldTemplateFeedback
	case NodeAdditionalSearch:
		return FieldRelevantResults | FieldAttemptCount
	default:
		return 0
	}
}
