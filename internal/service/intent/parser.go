package intent

import (
	"context"
	"strings"

	"github.com/kapu/pizzabot-go/internal/config"
	"github.com/kapu/pizzabot-go/internal/domain"
	"github.com/kapu/pizzabot-go/internal/nlp"
	"github.com/kapu/pizzabot-go/internal/util"
	"go.uber.org/zap"
)

var wordToNumber = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"a": 1, "an": 1,
}

// Parser decides whether free text expresses an order intent and extracts
// the structured order fields (item type, quantity) from it.
type Parser struct {
	parser       nlp.Parser
	cfg          config.OrderConfig
	catalogWords []string
	logger       *zap.Logger
}

// NewParser builds an intent parser. catalogWords is the lexicon of single
// words occurring in catalog names, used as a last-resort type source when
// the product noun is absent.
func NewParser(parser nlp.Parser, cfg config.OrderConfig, catalogWords []string, logger *zap.Logger) *Parser {
	return &Parser{
		parser:       parser,
		cfg:          cfg,
		catalogWords: catalogWords,
		logger:       logger,
	}
}

// DetectIntent reports whether text expresses an order intent. Two
// independent checks: a literal-phrase list that works on any input, and a
// dependency-parse check that generalizes across phrasings. The literal list
// runs first so ungrammatical input never needs a parse.
func (p *Parser) DetectIntent(ctx context.Context, text string) (bool, error) {
	lower := util.Normalize(text)

	for _, known := range p.cfg.IntentPhrases {
		if strings.Contains(lower, known) {
			return true, nil
		}
	}

	sentence, err := p.parser.Parse(ctx, lower)
	if err != nil {
		return false, err
	}

	for _, tok := range sentence.Tokens {
		if !util.Contains(p.cfg.IntentVerbs, tok.Lemma) {
			continue
		}
		for _, sub := range sentence.Subtree(tok) {
			if util.Contains(p.cfg.ProductLemmas, sub.Lemma) {
				return true, nil
			}
		}
	}

	return false, nil
}

// ExtractOrderFields pulls a candidate item type and a quantity out of one
// order-intent sentence. The returned item type is a raw candidate for the
// catalog matcher, not a catalog name; it is empty when nothing type-like
// was found.
func (p *Parser) ExtractOrderFields(ctx context.Context, text string) (*domain.OrderFields, error) {
	sentence, err := p.parser.Parse(ctx, util.Normalize(text))
	if err != nil {
		return nil, err
	}

	return &domain.OrderFields{
		Quantity: quantityFromSentence(sentence),
		ItemType: p.itemTypeFromSentence(sentence),
	}, nil
}

// ExtractQuantity parses a quantity from text. Bare digits and single number
// words are resolved without a parser round trip; anything longer goes
// through token scanning. The result is not clamped here: clamping happens
// at order finalization.
func (p *Parser) ExtractQuantity(ctx context.Context, text string) (int, error) {
	lower := util.Normalize(text)

	if n, ok := parseQuantityToken(lower); ok {
		return n, nil
	}

	sentence, err := p.parser.Parse(ctx, lower)
	if err != nil {
		return 0, err
	}

	return quantityFromSentence(sentence), nil
}

// quantityFromSentence scans every token; the rightmost recognized quantity
// token wins. Defaults to 1 when no token is recognized.
func quantityFromSentence(s *nlp.Sentence) int {
	quantity := 1
	for _, tok := range s.Tokens {
		if n, ok := parseQuantityToken(strings.ToLower(tok.Text)); ok {
			quantity = n
			continue
		}
		if n, ok := wordToNumber[tok.Lemma]; ok {
			quantity = n
		}
	}
	return quantity
}

func parseQuantityToken(word string) (int, bool) {
	if n, ok := wordToNumber[word]; ok {
		return n, true
	}
	if word == "" {
		return 0, false
	}
	for _, r := range word {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n := 0
	for _, r := range word {
		n = n*10 + int(r-'0')
		if n > 1000 {
			return 1000, true
		}
	}
	return n, true
}

func (p *Parser) itemTypeFromSentence(s *nlp.Sentence) string {
	for _, tok := range s.Tokens {
		if tok.Lemma != p.cfg.ProductNoun {
			continue
		}

		var modifiers []nlp.Token
		for _, left := range s.Lefts(tok) {
			switch left.Dep {
			case nlp.DepAdjModifier, nlp.DepCompound, nlp.DepDeterminer:
				modifiers = append(modifiers, left)
			}
		}

		// Widen to a small token window around the product noun when its
		// direct modifiers are missing ("pepperoni, one pizza please").
		if len(modifiers) == 0 {
			for _, t := range s.Tokens {
				if t.Index == tok.Index {
					continue
				}
				if t.POS != nlp.PosNoun && t.POS != nlp.PosAdjective {
					continue
				}
				if abs(t.Index-tok.Index) <= p.cfg.ModifierWindow {
					modifiers = append(modifiers, t)
				}
			}
		}

		if len(modifiers) == 0 {
			return p.customTypeName()
		}

		parts := make([]string, len(modifiers))
		for i, m := range modifiers {
			parts[i] = m.Text
		}
		return util.TitleCase(strings.Join(parts, " "))
	}

	// No product noun in the sentence: fall back to the catalog lexicon.
	for _, tok := range s.Tokens {
		if util.Contains(p.catalogWords, tok.Lemma) {
			return util.TitleCase(tok.Text)
		}
	}

	return ""
}

// customTypeName is the sentinel for "the user named the product but no
// specific type", e.g. "Custom Pizza".
func (p *Parser) customTypeName() string {
	return "Custom " + util.TitleCase(p.cfg.ProductNoun)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
