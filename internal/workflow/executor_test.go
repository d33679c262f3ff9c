package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

func defaultSearch() *fakeSearch {
	return &fakeSearch{fallback: []retrieval.Result{
		{Content: "first", Link: "https://a"},
		{Content: "second", Link: "https://b"},
	}}
}

func TestExecutor_GoodFirstPass(t *testing.T) {
	svc := newFakeService()
	search := defaultSearch()
	exec := New(svc, search, &fakePrice{}, Options{})

	result, err := exec.Run(context.Background(), Request{Question: "What is bitcoin?"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if result.Status != StatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if countNode(result.Path, NodeAdditionalSearch) != 0 {
		t.Error("expected no additional search on good critique")
	}
	if len(search.queries) != 1 {
		t.Errorf("expected only the planned search, got %v", search.queries)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if !strings.Contains(result.Output, "## Executive Summary") || !strings.Contains(result.Output, "[1] https://a") {
		t.Errorf("unexpected output:\n%s", result.Output)
	}
	if result.RunID == "" {
		t.Error("expected run id")
	}
}

func TestExecutor_OneRefineRoundAtDefaultBudget(t *testing.T) {
	svc := newFakeService()
	// Second critique also fails; budget must still end the run.
	svc.critiques = []*reasoning.Critique{
		{IsGood: false, MissingInfo: "regulatory news", TemplateFollowed: true},
		{IsGood: false, MissingInfo: "still missing", TemplateFollowed: true},
	}
	search := defaultSearch()
	exec := New(svc, search, nil, Options{})

	result, err := exec.Run(context.Background(), Request{Question: "q"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if n := countNode(result.Path, NodeAdditionalSearch); n != 1 {
		t.Errorf("expected exactly 1 additional search, got %d", n)
	}
	if svc.calls[reasoning.OpAnswer] != 2 || svc.calls[reasoning.OpCritique] != 2 {
		t.Errorf("expected 2 answer/critique rounds, got %d/%d",
			svc.calls[reasoning.OpAnswer], svc.calls[reasoning.OpCritique])
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
	if search.queries[1] != "regulatory news" {
		t.Errorf("expected missing info searched, got %v", search.queries)
	}

	want := []Node{
		NodeClarify, NodeGenerateSubqueries, NodePlan, NodeGatherInfo, NodeFilterResults,
		NodeAnswer, NodeCritique, NodeAdditionalSearch, NodeAnswer, NodeCritique,
	}
	if len(result.Path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, result.Path)
	}
	for i := range want {
		if result.Path[i] != want[i] {
			t.Errorf("path[%d]: expected %s, got %s", i, want[i], result.Path[i])
		}
	}
}

func TestExecutor_AttemptsNeverExceedMax(t *testing.T) {
	for _, limit := range []int{1, 2, 3, 5} {
		svc := newFakeService()
		svc.critiques = []*reasoning.Critique{{IsGood: false, MissingInfo: "more"}}
		exec := New(svc, defaultSearch(), nil, Options{})

		result, err := exec.Run(context.Background(), Request{Question: "q", MaxAttempts: limit})
		if err != nil {
			t.Fatalf("max %d: run error: %v", limit, err)
		}
		if result.Attempts != limit {
			t.Errorf("max %d: expected %d attempts, got %d", limit, limit, result.Attempts)
		}
		if n := countNode(result.Path, NodeAdditionalSearch); n != limit-1 {
			t.Errorf("max %d: expected %d refine rounds, got %d", limit, limit-1, n)
		}
	}
}

func TestExecutor_AsksUserWhenClarificationNeeded(t *testing.T) {
	svc := newFakeService()
	svc.clarification = &reasoning.Clarification{Needed: true, Question: "Which time frame?"}
	exec := New(svc, defaultSearch(), nil, Options{})

	var asked []string
	exec.SetAsker(AskerFunc(func(ctx context.Context, q string) (string, error) {
		asked = append(asked, q)
		return "next quarter", nil
	}))

	result, err := exec.Run(context.Background(), Request{Question: "Will BTC rise?"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	ask := indexOf(result.Path, NodeAskUser)
	sub := indexOf(result.Path, NodeGenerateSubqueries)
	if ask == -1 || ask > sub {
		t.Errorf("expected ask_user before generate_subqueries, path %v", result.Path)
	}
	if len(asked) != 1 || asked[0] != "Which time frame?" {
		t.Errorf("unexpected prompts: %v", asked)
	}
	if svc.lastDetails != "next quarter" {
		t.Errorf("expected clarification passed to subqueries, got %q", svc.lastDetails)
	}
}

func TestExecutor_PresetClarificationSkipsAsk(t *testing.T) {
	svc := newFakeService()
	svc.clarification = &reasoning.Clarification{Needed: true, Question: "Which time frame?"}
	exec := New(svc, defaultSearch(), nil, Options{})
	exec.SetAsker(AskerFunc(func(ctx context.Context, q string) (string, error) {
		t.Error("asker should not be called")
		return "", nil
	}))

	result, err := exec.Run(context.Background(), Request{Question: "q", ClarificationAnswer: strPtr("this year")})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if indexOf(result.Path, NodeAskUser) != -1 {
		t.Error("expected ask_user skipped")
	}
	if svc.calls[reasoning.OpClarify] != 0 {
		t.Error("expected clarify call skipped for preset answer")
	}
	if svc.lastDetails != "this year" {
		t.Errorf("expected preset answer used, got %q", svc.lastDetails)
	}
}

func TestExecutor_NoAskerFails(t *testing.T) {
	svc := newFakeService()
	svc.clarification = &reasoning.Clarification{Needed: true}
	exec := New(svc, defaultSearch(), nil, Options{})

	result, err := exec.Run(context.Background(), Request{Question: "q"})
	if !errors.Is(err, ErrNoAsker) {
		t.Fatalf("expected ErrNoAsker, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "step ask_user:") {
		t.Errorf("expected step prefix, got %q", err.Error())
	}
	if result.Status != StatusFailed || result.Output != "" {
		t.Errorf("expected failed result without output, got %+v", result)
	}
}

func TestExecutor_EmptyPlan(t *testing.T) {
	svc := newFakeService()
	svc.plan = &reasoning.Plan{}
	svc.answer = &reasoning.Answer{CitedAnswer: "Not enough information.", ConfidenceScore: 0.1}
	search := defaultSearch()
	exec := New(svc, search, nil, Options{})

	result, err := exec.Run(context.Background(), Request{Question: "q"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(result.State.RawResults) != 0 || len(result.State.RelevantResults) != 0 {
		t.Errorf("expected no results, got %+v", result.State)
	}
	if svc.calls[reasoning.OpRank] != 0 {
		t.Error("expected ranking skipped")
	}
	if len(svc.lastContext) != 0 {
		t.Error("expected empty answer context")
	}
	if !strings.Contains(result.Output, "Not enough information.") {
		t.Errorf("unexpected output %q", result.Output)
	}
}

func TestExecutor_MissingCritiqueWarns(t *testing.T) {
	svc := newFakeService()
	svc.critiques = []*reasoning.Critique{nil}
	sink := &recordSink{}
	exec := New(svc, defaultSearch(), nil, Options{})
	exec.SetSink(sink)

	result, err := exec.Run(context.Background(), Request{Question: "q"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", result.Warnings)
	}
	if len(sink.ofType(EventWarning)) != 1 {
		t.Error("expected warning event")
	}
	if result.Output == FallbackOutput {
		t.Error("expected answer still rendered")
	}
}

func TestExecutor_StepErrorAborts(t *testing.T) {
	boom := errors.New("model unavailable")
	svc := newFakeService()
	svc.err[reasoning.OpPlan] = boom
	exec := New(svc, defaultSearch(), nil, Options{})

	_, err := exec.Run(context.Background(), Request{Question: "q"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected plan error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "step plan:") {
		t.Errorf("expected step prefix, got %q", err.Error())
	}
	if svc.calls[reasoning.OpAnswer] != 0 {
		t.Error("expected no steps after failure")
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newFakeService()
	exec := New(svc, defaultSearch(), nil, Options{})

	_, err := exec.Run(ctx, Request{Question: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if svc.calls[reasoning.OpClarify] != 0 {
		t.Error("expected no calls on cancelled context")
	}
}

func TestExecutor_EventsAndCallbacks(t *testing.T) {
	sink := &recordSink{}
	exec := New(newFakeService(), defaultSearch(), nil, Options{})
	exec.SetSink(sink)

	var started, completed []Node
	exec.OnStepStart = func(n Node) { started = append(started, n) }
	exec.OnStepComplete = func(n Node, d time.Duration) { completed = append(completed, n) }

	result, err := exec.Run(context.Background(), Request{Question: "q"})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(started) != len(result.Path) || len(completed) != len(result.Path) {
		t.Errorf("expected callbacks per step, got %d/%d for %d steps", len(started), len(completed), len(result.Path))
	}

	if sink.events[0].Type != EventRunStart || sink.events[len(sink.events)-1].Type != EventRunEnd {
		t.Errorf("expected run_start first and run_end last")
	}
	ends := sink.ofType(EventStepEnd)
	if len(ends) != len(result.Path) {
		t.Errorf("expected %d step_end events, got %d", len(result.Path), len(ends))
	}
	for _, e := range sink.events {
		if e.RunID != result.RunID {
			t.Fatalf("event run id %q != %q", e.RunID, result.RunID)
		}
	}
	for _, e := range ends {
		if e.Node == NodeGatherInfo && e.Fields["raw_results"] != 2 {
			t.Errorf("expected raw_results=2 in gather summary, got %v", e.Fields)
		}
	}
}

func TestCheckOwnership(t *testing.T) {
	u := Update{}.WithPlan(&reasoning.Plan{}).WithAnswer(&reasoning.Answer{})
	err := checkOwnership(NodePlan, u)
	if !errors.Is(err, ErrFieldOwnership) {
		t.Fatalf("expected ErrFieldOwnership, got %v", err)
	}
	if !strings.Contains(err.Error(), "answer") {
		t.Errorf("expected offending field named, got %q", err.Error())
	}
	if err := checkOwnership(NodeCritique, Update{}.WithCritique(nil).WithTemplateFeedback(nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNodeOwnership(t *testing.T) {
	st := newSteps(newFakeService(), defaultSearch(), &fakePrice{})
	s := State{
		Question:     "q",
		Plan:         &reasoning.Plan{Steps: []reasoning.PlanStep{{Tool: reasoning.ToolWebSearch, Query: "x"}}},
		RawResults:   []retrieval.Result{{Content: "r", Link: "L"}},
		Answer:       newFakeService().answer,
		Critique:     &reasoning.Critique{MissingInfo: "more"},
		AttemptCount: 1,
	}
	for n := NodeClarify; n < NodeTerminal; n++ {
		if n == NodeAskUser {
			continue
		}
		u, err := st.forNode(n)(context.Background(), s)
		if err != nil {
			t.Fatalf("%s: %v", n, err)
		}
		if extra := u.Fields() &^ n.owns(); extra != 0 {
			t.Errorf("%s wrote fields it does not own: %v", n, extra.Names())
		}
	}
}
