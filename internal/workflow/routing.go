package workflow

// DefaultMaxAttempts bounds the answer/critique loop when no limit is given.
const DefaultMaxAttempts = 2

const warnCritiqueMissing = "critique missing after critique step; ending run"

// afterClarify routes to AskUser only when clarification is needed and no
// answer is known yet.
func afterClarify(s State) Node {
	if s.Clarification != nil && s.Clarification.Needed && s.ClarificationAnswer == nil {
		return NodeAskUser
	}
	return NodeGenerateSubqueries
}

// afterCritique ends the run on a good critique or an exhausted budget and
// otherwise loops through AdditionalSearch. A missing critique ends the run
// with a warning.
func afterCritique(s State, maxAttempts int) (Node, string) {
	if s.Critique == nil {
		return NodeTerminal, warnCritiqueMissing
	}
	if s.Critique.IsGood || s.AttemptCount >= maxAttempts {
		return NodeTerminal, ""
	}
	return NodeAdditionalSearch, ""
}

// transition returns the node that follows n given the state after n ran,
// plus a warning when the state forced an early exit.
func transition(n Node, s State, maxAttempts int) (Node, string) {
	switch n {
	case NodeClarify:
		return afterClarify(s), ""
	case NodeAskUser:
		return NodeGenerateSubqueries, ""
	case NodeGenerateSubqueries:
		return NodePlan, ""
	case NodePlan:
		return NodeGatherInfo, ""
	case NodeGatherInfo:
		return NodeFilterResults, ""
	case NodeFilterResults:
		return NodeAnswer, ""
	case NodeAnswer:
		return NodeCritique, ""
	case NodeCritique:
		return afterCritique(s, maxAttempts)
	case NodeAdditionalSearch:
		return NodeAnswer, ""
	default:
		return NodeTerminal, ""
	}
}
