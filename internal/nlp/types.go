package nlp

// Part-of-speech tags, following Universal Dependencies conventions as
// emitted by the parser sidecar.
const (
	PosNoun       = "NOUN"
	PosProperNoun = "PROPN"
	PosVerb       = "VERB"
	PosAdjective  = "ADJ"
	PosNumber     = "NUM"
)

// Dependency roles.
const (
	DepPrepObject     = "pobj"
	DepPreposition    = "prep"
	DepAdjModifier    = "amod"
	DepCompound       = "compound"
	DepDeterminer     = "det"
	DepNominalSubject = "nsubj"
	DepDirectObject   = "dobj"
)

// Token is one analyzed word of a sentence. Head is the index of the
// governing token; the root token's head is its own index.
type Token struct {
	Index int    `json:"i"`
	Text  string `json:"text"`
	Lemma string `json:"lemma"`
	POS   string `json:"pos"`
	Dep   string `json:"dep"`
	Head  int    `json:"head"`
}

// Sentence is the syntactic analysis of one input sentence. It is produced
// by the parser and only ever read by consumers.
type Sentence struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

// Children returns the direct dependents of the token at index head, in
// sentence order.
func (s *Sentence) Children(head int) []Token {
	var out []Token
	for _, t := range s.Tokens {
		if t.Head == head && t.Index != head {
			out = append(out, t)
		}
	}
	return out
}

// Lefts returns direct dependents that precede the token in the sentence.
func (s *Sentence) Lefts(tok Token) []Token {
	var out []Token
	for _, t := range s.Children(tok.Index) {
		if t.Index < tok.Index {
			out = append(out, t)
		}
	}
	return out
}

// Rights returns direct dependents that follow the token in the sentence.
func (s *Sentence) Rights(tok Token) []Token {
	var out []Token
	for _, t := range s.Children(tok.Index) {
		if t.Index > tok.Index {
			out = append(out, t)
		}
	}
	return out
}

// Subtree returns the token and all of its descendants. Head links come from
// an external service and are not trusted to form a tree: every token is
// visited at most once, so cyclic links terminate instead of recursing
// forever.
func (s *Sentence) Subtree(tok Token) []Token {
	visited := make(map[int]bool, len(s.Tokens))
	return s.collectSubtree(tok, visited)
}

func (s *Sentence) collectSubtree(tok Token, visited map[int]bool) []Token {
	if visited[tok.Index] {
		return nil
	}
	visited[tok.Index] = true

	out := []Token{tok}
	for _, child := range s.Children(tok.Index) {
		out = append(out, s.collectSubtree(child, visited)...)
	}
	return out
}
