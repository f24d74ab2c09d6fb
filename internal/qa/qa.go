// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package qa implements the question dispatcher (C9): rule-based
// classification on keyword sets, routed to a per-category handler that
// composes its answer from the spatial context assembled by C8. The
// classification table mirrors the keyword-bucket style the teacher's
// internal/operator.Operator uses to route chat messages to a category,
// generalized from its sql/code/data/test buckets to this domain's
// question categories.
package qa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tumluliu/spacxt/internal/errkind"
	"github.com/tumluliu/spacxt/internal/scene"
	"github.com/tumluliu/spacxt/internal/spatialctx"
)

// QuestionType is one of the closed categories spec.md §4.9 names.
type QuestionType string

const (
	WhatIf        QuestionType = "what_if"
	Stability     QuestionType = "stability"
	Accessibility QuestionType = "accessibility"
	Relationship  QuestionType = "relationship"
	Location      QuestionType = "location"
	General       QuestionType = "general"
	Complex       QuestionType = "complex"
)

// priorityOrder is the tie-break order spec.md §4.9 names for questions
// matching more than one category's keyword set.
var priorityOrder = []QuestionType{WhatIf, Stability, Accessibility, Relationship, Location, General}

var keywords = map[QuestionType][]string{
	WhatIf:        {"what if", "what would happen", "if i remove", "if i move", "if we remove"},
	Stability:     {"stable", "stability", "risk", "tip over", "fall over", "depend on", "dependents"},
	Accessibility: {"reach", "access", "blocked", "easily", "grab"},
	Relationship:  {"relation", "near", "next to", "on top of", "supports", "beside", "above", "below", "touching"},
	Location:      {"where", "location", "position", "located"},
	General:       {"describe", "summary", "overview", "what's in", "tell me about", "what is in"},
}

// Classify picks the highest-priority category whose keyword set matches
// question, falling back to Complex when nothing matches — the catch-all
// an external LLM may answer given the snapshot, per spec.md §4.9.
func Classify(question string) QuestionType {
	q := strings.ToLower(question)
	for _, qt := range priorityOrder {
		for _, kw := range keywords[qt] {
			if strings.Contains(q, kw) {
				return qt
			}
		}
	}
	return Complex
}

// Answer is the dispatcher's response, per spec.md §4.9.
type Answer struct {
	QuestionType QuestionType
	AnswerText   string
	Confidence   float64
	Evidence     []string
}

// RemovalSimulator simulates spec.md §4.7's removal cascade without
// mutating the live store, for the what_if handler. The runtime package
// implements it over a cloned in-memory store.
type RemovalSimulator interface {
	SimulateRemoval(targetID string) (SimulationResult, error)
}

// SimulationResult reports what a simulated removal would do.
type SimulationResult struct {
	FellToFloor     []string
	VanishedRelations []scene.RelationKey
	Warnings        []errkind.Kind
	AllNonFixed     bool
}

// mentionedObjects returns the ids of every object in ctx.Objects whose
// id or name appears verbatim in the (lowercased) question.
func mentionedObjects(question string, ctx spatialctx.Context) []string {
	q := strings.ToLower(question)
	var out []string
	for _, o := range ctx.Objects {
		if strings.Contains(q, strings.ToLower(o.ID)) || (o.Name != "" && strings.Contains(q, strings.ToLower(o.Name))) {
			out = append(out, o.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Dispatch classifies question and routes it to the matching handler.
func Dispatch(question string, ctx spatialctx.Context, sim RemovalSimulator) Answer {
	switch Classify(question) {
	case WhatIf:
		return handleWhatIf(question, ctx, sim)
	case Stability:
		return handleStability(question, ctx)
	case Accessibility:
		return handleAccessibility(question, ctx)
	case Relationship:
		return handleRelationship(question, ctx)
	case Location:
		return handleLocation(question, ctx)
	case General:
		return handleGeneral(ctx)
	default:
		return handleComplex(question, ctx)
	}
}

// relationTypeHints maps a question phrase to the relation type it names,
// checked in order so a longer phrase wins over a shorter one it contains
// ("supports" before "support").
var relationTypeHints = []struct {
	phrase string
	typ    string
}{
	{"on top of", "on_top_of"},
	{"next to", "beside"},
	{"beside", "beside"},
	{"above", "above"},
	{"below", "below"},
	{"supports", "supports"},
	{"support", "supports"},
	{"near", "near"},
}

func namedRelationType(question string) (string, bool) {
	q := strings.ToLower(question)
	for _, h := range relationTypeHints {
		if strings.Contains(q, h.phrase) {
			return h.typ, true
		}
	}
	return "", false
}

func handleRelationship(question string, ctx spatialctx.Context) Answer {
	targets := mentionedObjects(question, ctx)
	wantType, hasType := namedRelationType(question)

	var matched []spatialctx.RelationshipRecord
	for _, r := range ctx.Relationships {
		if !containsAny(targets, r.A, r.B) {
			continue
		}
		if hasType && r.Type != wantType {
			continue
		}
		matched = append(matched, r)
	}
	if len(targets) == 0 {
		matched = ctx.Relationships
	}

	lines := make([]string, 0, len(matched))
	minConf := 1.0
	for _, r := range matched {
		lines = append(lines, fmt.Sprintf("%s(%s, %s) conf=%.2f", r.Type, r.A, r.B, r.Confidence))
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
	}
	if len(matched) == 0 {
		minConf = 0
	}
	return Answer{QuestionType: Relationship, AnswerText: strings.Join(lines, "; "), Confidence: minConf, Evidence: lines}
}

func handleLocation(question string, ctx spatialctx.Context) Answer {
	targets := mentionedObjects(question, ctx)
	if len(targets) == 0 {
		for _, o := range ctx.Objects {
			targets = append(targets, o.ID)
		}
	}
	clusterOf := map[string]string{}
	for _, c := range ctx.SpatialClusters {
		for _, m := range c.Members {
			clusterOf[m] = c.ClusterType
		}
	}

	byID := map[string]spatialctx.ObjectRecord{}
	for _, o := range ctx.Objects {
		byID[o.ID] = o
	}

	lines := make([]string, 0, len(targets))
	for _, id := range targets {
		o, ok := byID[id]
		if !ok {
			continue
		}
		cluster := clusterOf[id]
		if cluster == "" {
			cluster = "none"
		}
		lines = append(lines, fmt.Sprintf("%s at (%.2f,%.2f,%.2f), cluster=%s", o.ID, o.Pos.X, o.Pos.Y, o.Pos.Z, cluster))
	}
	return Answer{QuestionType: Location, AnswerText: strings.Join(lines, "; "), Confidence: 1.0, Evidence: lines}
}

func handleAccessibility(question string, ctx spatialctx.Context) Answer {
	var reachable, blocked, limited []string
	for id, rec := range ctx.Accessibility {
		switch rec.Category {
		case "reachable":
			reachable = append(reachable, id)
		case "blocked":
			blocked = append(blocked, id)
		default:
			limited = append(limited, id)
		}
	}
	sort.Strings(reachable)
	sort.Strings(blocked)
	sort.Strings(limited)

	text := fmt.Sprintf("reachable: %s; limited: %s; blocked: %s",
		strings.Join(reachable, ", "), strings.Join(limited, ", "), strings.Join(blocked, ", "))
	return Answer{QuestionType: Accessibility, AnswerText: text, Confidence: 1.0, Evidence: reachable}
}

func handleStability(question string, ctx spatialctx.Context) Answer {
	targets := mentionedObjects(question, ctx)
	if len(targets) > 0 {
		var lines []string
		for _, id := range targets {
			deps := ctx.SupportDependencies.RecursiveDependents[id]
			lines = append(lines, fmt.Sprintf("%s has %d recursive dependents: %s", id, len(deps), strings.Join(deps, ", ")))
		}
		return Answer{QuestionType: Stability, AnswerText: strings.Join(lines, "; "), Confidence: 1.0, Evidence: lines}
	}

	counts := map[string]int{}
	for _, rec := range ctx.Stability {
		counts[rec.Risk]++
	}
	text := fmt.Sprintf("stability risk: high=%d medium=%d low=%d", counts["high"], counts["medium"], counts["low"])
	return Answer{QuestionType: Stability, AnswerText: text, Confidence: 1.0}
}

func handleWhatIf(question string, ctx spatialctx.Context, sim RemovalSimulator) Answer {
	targets := mentionedObjects(question, ctx)
	if len(targets) == 0 || sim == nil {
		return Answer{QuestionType: WhatIf, AnswerText: "could not identify a target object to simulate", Confidence: 0}
	}

	result, err := sim.SimulateRemoval(targets[0])
	if err != nil {
		return Answer{QuestionType: WhatIf, AnswerText: err.Error(), Confidence: 0}
	}

	conf := 0.7
	if result.AllNonFixed {
		conf = 0.9
	}

	var vanished []string
	for _, k := range result.VanishedRelations {
		vanished = append(vanished, fmt.Sprintf("%s(%s,%s)", k.Type, k.A, k.B))
	}

	text := fmt.Sprintf("removing %s: %d objects lose support and fall to the floor (%s); relations vanishing: %s",
		targets[0], len(result.FellToFloor), strings.Join(result.FellToFloor, ", "), strings.Join(vanished, ", "))
	return Answer{QuestionType: WhatIf, AnswerText: text, Confidence: conf, Evidence: vanished}
}

func handleGeneral(ctx spatialctx.Context) Answer {
	var classLines []string
	for class, count := range ctx.SceneSummary.CountsByClass {
		classLines = append(classLines, fmt.Sprintf("%d %s", count, class))
	}
	sort.Strings(classLines)

	insights := ctx.Insights
	if len(insights) > 5 {
		insights = insights[:5]
	}

	text := fmt.Sprintf("scene has %s. %s", strings.Join(classLines, ", "), strings.Join(insights, "; "))
	return Answer{QuestionType: General, AnswerText: text, Confidence: 1.0, Evidence: insights}
}

func handleComplex(question string, ctx spatialctx.Context) Answer {
	return Answer{
		QuestionType: Complex,
		AnswerText:   "",
		Confidence:   0,
		Evidence:     []string{question},
	}
}

func containsAny(haystack []string, needles ...string) bool {
	for _, n := range needles {
		for _, h := range haystack {
			if h == n {
				return true
			}
		}
	}
	return false
}
