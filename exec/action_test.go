package exec

import "testing"

func TestParseRecommendationSignal(t *testing.T) {
	a, ok := ParseRecommendation("Trigger the checkpoint-dump signal (SIGUSR1)")
	if !ok || a.Kind != Signal || a.SignalNumber != sigusr1 {
		t.Fatalf("expected Signal action with SIGUSR1, got %+v ok=%v", a, ok)
	}
}

func TestParseRecommendationKill(t *testing.T) {
	a, ok := ParseRecommendation("zap the process")
	if !ok || a.Kind != KillProcess {
		t.Fatalf("expected KillProcess action, got %+v ok=%v", a, ok)
	}
}

func TestParseRecommendationGraceful(t *testing.T) {
	a, ok := ParseRecommendation("perform a graceful shutdown")
	if !ok || a.Kind != GracefulShutdown || !a.ForceKill {
		t.Fatalf("expected GracefulShutdown with force kill, got %+v ok=%v", a, ok)
	}
}

func TestParseRecommendationCustomPrefix(t *testing.T) {
	a, ok := ParseRecommendation(`custom: /usr/bin/echo "hello world" --flag`)
	if !ok || a.Kind != Custom {
		t.Fatalf("expected Custom action, got %+v ok=%v", a, ok)
	}
	if a.Command != "/usr/bin/echo" {
		t.Errorf("expected command /usr/bin/echo, got %s", a.Command)
	}
	if len(a.Args) != 2 || a.Args[0] != "hello world" || a.Args[1] != "--flag" {
		t.Errorf("expected shell-quoted args preserved, got %+v", a.Args)
	}
}

func TestParseRecommendationNoMatch(t *testing.T) {
	_, ok := ParseRecommendation("this text matches no known keyword")
	if ok {
		t.Error("expected no action to be parsed from unrecognized text")
	}
}

func TestActionPriorityOrdering(t *testing.T) {
	if Signal.Priority() >= GracefulShutdown.Priority() {
		t.Error("Signal must run before GracefulShutdown")
	}
	if KillProcess.Priority() <= Custom.Priority() {
		t.Error("KillProcess must run last, after Custom")
	}
}

func TestBuildPlanSortsByAscendingPriority(t *testing.T) {
	plan := BuildPlan([]string{
		"zap the process",
		"trigger checkpoint dump sigusr1",
		"apply cgroup throttle",
	})

	if len(plan.Actions) != 3 {
		t.Fatalf("expected 3 parsed actions, got %d", len(plan.Actions))
	}
	if plan.Actions[0].Kind != Signal {
		t.Errorf("expected Signal first (priority 1), got %s", plan.Actions[0].Kind)
	}
	if plan.Actions[len(plan.Actions)-1].Kind != KillProcess {
		t.Errorf("expected KillProcess last (priority 10), got %s", plan.Actions[len(plan.Actions)-1].Kind)
	}
}

func TestBuildPlanSkipsUnrecognizedText(t *testing.T) {
	plan := BuildPlan([]string{"nonsense text", "zap the process"})
	if len(plan.Actions) != 1 {
		t.Fatalf("expected only the recognized recommendation to survive, got %d", len(plan.Actions))
	}
}
