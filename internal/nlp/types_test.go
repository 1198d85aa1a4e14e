package nlp

import "testing"

// buildSentence: "tell me about the capital of France"
//
//	tell(0, root) -> me(1, dobj), about(2, prep)
//	about(2) -> capital(4, pobj)
//	capital(4) -> the(3, det), of(5, prep)
//	of(5) -> France(6, pobj)
func buildSentence() *Sentence {
	return &Sentence{
		Text: "tell me about the capital of France",
		Tokens: []Token{
			{Index: 0, Text: "tell", Lemma: "tell", POS: PosVerb, Dep: "ROOT", Head: 0},
			{Index: 1, Text: "me", Lemma: "i", POS: "PRON", Dep: DepDirectObject, Head: 0},
			{Index: 2, Text: "about", Lemma: "about", POS: "ADP", Dep: DepPreposition, Head: 0},
			{Index: 3, Text: "the", Lemma: "the", POS: "DET", Dep: DepDeterminer, Head: 4},
			{Index: 4, Text: "capital", Lemma: "capital", POS: PosNoun, Dep: DepPrepObject, Head: 2},
			{Index: 5, Text: "of", Lemma: "of", POS: "ADP", Dep: DepPreposition, Head: 4},
			{Index: 6, Text: "France", Lemma: "france", POS: PosProperNoun, Dep: DepPrepObject, Head: 5},
		},
	}
}

func TestChildren(t *testing.T) {
	s := buildSentence()

	children := s.Children(4)
	if len(children) != 2 {
		t.Fatalf("expected 2 children of 'capital', got %d", len(children))
	}
	if children[0].Text != "the" || children[1].Text != "of" {
		t.Errorf("unexpected children: %v", children)
	}
}

func TestChildrenRootExcludesSelf(t *testing.T) {
	s := buildSentence()

	for _, child := range s.Children(0) {
		if child.Index == 0 {
			t.Fatal("root token listed as its own child")
		}
	}
}

func TestLeftsAndRights(t *testing.T) {
	s := buildSentence()
	capital := s.Tokens[4]

	lefts := s.Lefts(capital)
	if len(lefts) != 1 || lefts[0].Text != "the" {
		t.Errorf("expected lefts [the], got %v", lefts)
	}

	rights := s.Rights(capital)
	if len(rights) != 1 || rights[0].Text != "of" {
		t.Errorf("expected rights [of], got %v", rights)
	}
}

func TestSubtree(t *testing.T) {
	s := buildSentence()
	capital := s.Tokens[4]

	subtree := s.Subtree(capital)
	want := map[string]bool{"capital": true, "the": true, "of": true, "France": true}
	if len(subtree) != len(want) {
		t.Fatalf("expected %d subtree tokens, got %d", len(want), len(subtree))
	}
	for _, tok := range subtree {
		if !want[tok.Text] {
			t.Errorf("unexpected subtree token %q", tok.Text)
		}
	}
}

func TestSubtreeTerminatesOnCyclicHeads(t *testing.T) {
	// Two tokens claiming each other as head. A naive descent would never
	// return; each token must be collected exactly once.
	s := &Sentence{
		Text: "a b",
		Tokens: []Token{
			{Index: 1, Text: "a", Head: 2},
			{Index: 2, Text: "b", Head: 1},
		},
	}

	subtree := s.Subtree(s.Tokens[0])
	if len(subtree) != 2 {
		t.Fatalf("expected both tokens exactly once, got %v", subtree)
	}
}

func TestSubtreeTerminatesOnSharedDescendant(t *testing.T) {
	// A token whose head is itself deeper in its own subtree.
	s := &Sentence{
		Tokens: []Token{
			{Index: 0, Text: "root", Head: 0},
			{Index: 1, Text: "x", Head: 2},
			{Index: 2, Text: "y", Head: 1},
		},
	}

	subtree := s.Subtree(s.Tokens[0])
	if len(subtree) != 1 {
		t.Fatalf("expected only the root, got %v", subtree)
	}
}
