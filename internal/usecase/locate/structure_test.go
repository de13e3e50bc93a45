package locate

import (
	"math"
	"testing"

	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
)

func TestScoreNode_ExactBeatsPartial(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("a 3d printer humming in the corner")

	exact := scoreNode(cfg, q, &domscene.Node{ID: "a", IndexTerms: []string{"3d printer"}})
	partial := scoreNode(cfg, q, &domscene.Node{ID: "b", IndexTerms: []string{"3d scanner"}})

	if exact <= partial {
		t.Fatalf("exact match %g must outscore partial %g", exact, partial)
	}
	if math.Abs(exact-cfg.ExactTermWeight) > tolerance {
		t.Fatalf("exact match score = %g, want %g", exact, cfg.ExactTermWeight)
	}
	// One of two non-stopword tokens overlaps.
	want := cfg.PartialTermWeight * 0.5
	if math.Abs(partial-want) > tolerance {
		t.Fatalf("partial score = %g, want %g", partial, want)
	}
}

func TestScoreNode_GenericTermsDownWeighted(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("a box next to a 3d printer")

	generic := scoreNode(cfg, q, &domscene.Node{ID: "storage", IndexTerms: []string{"box"}})
	specific := scoreNode(cfg, q, &domscene.Node{ID: "lab", IndexTerms: []string{"3d printer"}})

	if generic >= specific {
		t.Fatalf("generic term %g must not outscore specific fixture %g", generic, specific)
	}
	want := cfg.ExactTermWeight * cfg.GenericTermFactor
	if math.Abs(generic-want) > tolerance {
		t.Fatalf("generic score = %g, want %g", generic, want)
	}
}

func TestScoreNode_MultiCategoryBonus(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("a whiteboard and a projector by the podium")

	n := &domscene.Node{ID: "lecture_hall", IndexTerms: []string{"whiteboard", "projector", "podium"}}
	got := scoreNode(cfg, q, n)
	want := 3*cfg.ExactTermWeight + cfg.MultiCategoryBonus*2
	if math.Abs(got-want) > tolerance {
		t.Fatalf("score = %g, want %g", got, want)
	}

	// A single match earns no ensemble bonus.
	single := scoreNode(cfg, q, &domscene.Node{ID: "hall", IndexTerms: []string{"whiteboard"}})
	if math.Abs(single-cfg.ExactTermWeight) > tolerance {
		t.Fatalf("single-match score = %g, want %g", single, cfg.ExactTermWeight)
	}
}

func TestScoreNode_TagsAtReducedWeight(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("a quiet study area")
	n := &domscene.Node{ID: "n", Tags: []string{"study area"}}
	if got := scoreNode(cfg, q, n); math.Abs(got-cfg.TagWeight) > tolerance {
		t.Fatalf("tag score = %g, want %g", got, cfg.TagWeight)
	}
}

func TestScoreNode_NegativeTerms(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("exit sign above the staircase")

	n := &domscene.Node{
		ID:            "server_room",
		IndexTerms:    []string{"staircase"},
		NegativeTerms: []string{"exit sign"},
	}
	got := scoreNode(cfg, q, n)
	want := cfg.ExactTermWeight - cfg.NegativeTermPenalty
	if math.Abs(got-want) > tolerance {
		t.Fatalf("score = %g, want %g (penalty not applied)", got, want)
	}
}

func TestScoreStructure_CoversAllNodes(t *testing.T) {
	cfg := DefaultConfig()
	q := parseQuery("anything")
	nodes := []*domscene.Node{
		{ID: "a"}, {ID: "b", IndexTerms: []string{"anything"}}, {ID: "c"},
	}
	scores := scoreStructure(cfg, q, nodes)
	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(scores))
	}
	if scores["a"] != 0 || scores["c"] != 0 {
		t.Fatalf("unmatched nodes must score 0: %v", scores)
	}
	if scores["b"] <= 0 {
		t.Fatalf("matched node must score > 0: %v", scores)
	}
}
