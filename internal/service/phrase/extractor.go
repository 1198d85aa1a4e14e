package phrase

import (
	"context"
	"sort"
	"strings"

	"github.com/kapu/pizzabot-go/internal/nlp"
	"go.uber.org/zap"
)

// Extractor turns a free-text question into a short lookup phrase.
type Extractor struct {
	parser nlp.Parser
	logger *zap.Logger
}

func NewExtractor(parser nlp.Parser, logger *zap.Logger) *Extractor {
	return &Extractor{parser: parser, logger: logger}
}

// QueryPhrase parses text and extracts the best candidate phrase for a
// knowledge lookup. The returned phrase is empty only for empty input.
func (e *Extractor) QueryPhrase(ctx context.Context, text string) (string, error) {
	sentence, err := e.parser.Parse(ctx, text)
	if err != nil {
		return "", err
	}

	phrase := FromSentence(sentence)
	e.logger.Debug("Extracted lookup phrase",
		zap.String("text", text),
		zap.String("phrase", phrase),
	)
	return phrase, nil
}

// FromSentence extracts the lookup phrase from an already-parsed sentence.
// Strategies are tried in priority order; the first that produces tokens
// wins:
//
//  1. An object of a preposition, with its adjectival/compound modifiers,
//     recursing one level into a chained preposition ("capital of France").
//  2. The last verb that has a nominal subject, rendered as
//     subject + verb lemma + direct object.
//  3. Every noun, proper noun, and verb in sentence order.
//
// When the sentence has no usable token at all, the raw text is returned.
func FromSentence(s *nlp.Sentence) string {
	if s == nil || len(s.Tokens) == 0 {
		return ""
	}

	if phrase := prepositionObjectPhrase(s); phrase != "" {
		return phrase
	}

	if phrase := verbSubjectPhrase(s); phrase != "" {
		return phrase
	}

	var parts []string
	for _, t := range s.Tokens {
		switch t.POS {
		case nlp.PosNoun, nlp.PosProperNoun, nlp.PosVerb:
			parts = append(parts, t.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	return strings.TrimSpace(s.Text)
}

func prepositionObjectPhrase(s *nlp.Sentence) string {
	for _, tok := range s.Tokens {
		if tok.Dep != nlp.DepPrepObject {
			continue
		}

		collected := modifierLefts(s, tok)
		collected = append(collected, tok)

		// One level of recursion into a chained preposition, so phrases
		// like "capital of France" keep their tail.
		for _, right := range s.Rights(tok) {
			if right.Dep != nlp.DepPreposition {
				continue
			}
			collected = append(collected, right)
			for _, grandchild := range s.Children(right.Index) {
				if grandchild.Dep == nlp.DepPrepObject {
					collected = append(collected, modifierLefts(s, grandchild)...)
					collected = append(collected, grandchild)
				}
			}
		}

		return joinInSentenceOrder(collected)
	}
	return ""
}

func verbSubjectPhrase(s *nlp.Sentence) string {
	// Later verbs are tried first: in compound sentences the last verb is
	// more likely the main query verb.
	for i := len(s.Tokens) - 1; i >= 0; i-- {
		verb := s.Tokens[i]
		if verb.POS != nlp.PosVerb {
			continue
		}

		subject, ok := childWithDep(s, verb, nlp.DepNominalSubject)
		if !ok {
			continue
		}

		subjectPart := modifierLefts(s, subject)
		subjectPart = append(subjectPart, subject)
		phrase := joinInSentenceOrder(subjectPart) + " " + verb.Lemma

		if object, ok := childWithDep(s, verb, nlp.DepDirectObject); ok {
			objectPart := modifierLefts(s, object)
			objectPart = append(objectPart, object)
			phrase += " " + joinInSentenceOrder(objectPart)
		}

		return strings.TrimSpace(phrase)
	}
	return ""
}

func childWithDep(s *nlp.Sentence, parent nlp.Token, dep string) (nlp.Token, bool) {
	for _, child := range s.Children(parent.Index) {
		if child.Dep == dep {
			return child, true
		}
	}
	return nlp.Token{}, false
}

func modifierLefts(s *nlp.Sentence, tok nlp.Token) []nlp.Token {
	var out []nlp.Token
	for _, left := range s.Lefts(tok) {
		if left.Dep == nlp.DepAdjModifier || left.Dep == nlp.DepCompound {
			out = append(out, left)
		}
	}
	return out
}

// joinInSentenceOrder renders tokens in their original sentence positions,
// regardless of the order they were collected in.
func joinInSentenceOrder(tokens []nlp.Token) string {
	sorted := make([]nlp.Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	parts := make([]string, 0, len(sorted))
	var lastIndex = -1
	for _, t := range sorted {
		if t.Index == lastIndex {
			continue
		}
		lastIndex = t.Index
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}
