package core

import (
	"regexp"
	"strings"
)

// Classification is total: every predicate degrades to false/absent on odd
// input instead of failing, so signal derivation can never abort a run.

var (
	codePathRe   = regexp.MustCompile(`Please analyze the code file '([^']+)'`)
	mathSymbolRe = regexp.MustCompile(`[+\-/*^=]|∫|Σ|√|≈|≤|≥`)
	mathSpanRe   = regexp.MustCompile(`[0-9.\s+\-*/^()]+`)

	trivialPrefixRe = regexp.MustCompile(`^(what\s+is\s+|calculate\s+|compute\s+)`)
	trivialBodyRe   = regexp.MustCompile(`^[\d\s()+\-*/^.]+$`)
	// letters other than the loose constant allow-list (e, i, p, s, w)
	nonConstLetterRe = regexp.MustCompile(`[a-df-hj-oq-rt-vx-z]`)

	symbolsOnlyRe = regexp.MustCompile(`^[\W_]+$`)
	singleWordRe  = regexp.MustCompile(`^[a-zA-Z]{6,}$`)

	visualPhraseRe = regexp.MustCompile(`\b(explain|illustrate|visuali[sz]e|show|teach)\b.*\b(with|using)\b`)
	explainWithRe  = regexp.MustCompile(`\bexplain\b\s+\bwith\b\s+\w+`)
)

var mathKeywords = []string{
	"integrate", "differentiate", "solve", "simplify", "limit", "series",
	"matrix", "determinant", "eigen", "gradient", "derivative", "converge", "proof",
}

var theoryTriggers = []string{
	"proof", "theorem", "convergence", "bound", "rate", "lower bound", "upper bound",
}

var intentKeywords = []string{"math", "code", "explain", "what", "why", "how"}

var iconKeywords = []string{
	"icon", "icons", "diagram", "diagrams", "visual", "visuals",
	"animation", "illustration", "figure", "figures",
	"meme", "thumbnail", "sketch", "draw", "picture", "image", "graphic",
}

var visualCues = []string{
	"imagine", "picture", "see", "visual", "diagram", "arrow", "number line",
	"area under", "vector", "slide", "stack", "highlight", "shade",
}

// Classify derives the full signal set for a request. Pure function of the
// text; no I/O, no failure modes.
func Classify(text string) SignalSet {
	codePath := ExtractCodePath(text)
	isMath := LooksLikeMath(text)
	trivial := IsTrivialArithmetic(text)
	return SignalSet{
		NeedsClarification: NeedsClarification(text),
		CodePath:           codePath,
		IsMath:             isMath,
		IsTrivialMath:      trivial,
		WantsLiterature:    WantsLiterature(text, isMath, codePath, trivial),
	}
}

// ExtractCodePath returns the file path embedded via the known wrapper
// phrase, or "" when absent.
func ExtractCodePath(text string) string {
	if m := codePathRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// LooksLikeMath is deliberately high recall: keyword hits or any operator
// symbol count. False positives are fine, the evaluator rejects what it
// cannot parse.
func LooksLikeMath(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range mathKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return mathSymbolRe.MatchString(text)
}

// ExtractMathExpr grabs the longest digits-and-operators span from the text
// so the evaluator does not choke on surrounding prose. Returns "" when no
// span contains a digit.
func ExtractMathExpr(text string) string {
	spans := mathSpanRe.FindAllString(text, -1)
	if len(spans) == 0 {
		return ""
	}
	candidate := spans[0]
	for _, s := range spans[1:] {
		if len(s) > len(candidate) {
			candidate = s
		}
	}
	candidate = strings.TrimSpace(candidate)
	if !strings.ContainsAny(candidate, "0123456789") {
		return ""
	}
	return candidate
}

// IsTrivialArithmetic reports whether the request is a small arithmetic query
// like "2+3" or "what is 7*8?". Trivial arithmetic suppresses literature
// search.
func IsTrivialArithmetic(text string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	t = trivialPrefixRe.ReplaceAllString(t, "")
	t = strings.TrimRight(t, "?.! ")
	if nonConstLetterRe.MatchString(t) {
		return false
	}
	return trivialBodyRe.MatchString(t) && len(t) <= 30
}

// NeedsClarification is conservative: only near-meaningless input (too
// short, all symbols, one long keyword-free word) triggers a follow-up.
func NeedsClarification(text string) bool {
	t := strings.TrimSpace(text)
	if len(t) < 3 {
		return true
	}
	if symbolsOnlyRe.MatchString(t) {
		return true
	}
	if len(t) > 6 && !strings.ContainsAny(t, "aeiouAEIOU") {
		return true
	}
	if singleWordRe.MatchString(t) {
		lower := strings.ToLower(t)
		for _, k := range intentKeywords {
			if strings.Contains(lower, k) {
				return false
			}
		}
		return true
	}
	return false
}

// WantsLiterature defaults ON for open-ended questions, OFF when a code file
// was provided or the math is trivial. Non-trivial math only pulls
// literature when theory vocabulary is present.
func WantsLiterature(text string, isMath bool, codePath string, trivialMath bool) bool {
	if codePath != "" {
		return false
	}
	if trivialMath {
		return false
	}
	if isMath {
		lower := strings.ToLower(text)
		for _, k := range theoryTriggers {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
	return true
}

// WantsIconsFromUser detects explicit visual requests in the raw text.
func WantsIconsFromUser(text string) bool {
	t := strings.ToLower(text)
	for _, k := range iconKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	if visualPhraseRe.MatchString(t) {
		return true
	}
	return explainWithRe.MatchString(t)
}

// WantsIconsFromPayload decides post hoc from the synthesis output: a
// non-empty visual brief, or visual language in the explanation.
func WantsIconsFromPayload(p Payload) bool {
	if len(p.VisualBrief) > 0 {
		return true
	}
	expl := strings.ToLower(p.Explanation.Content)
	for _, k := range visualCues {
		if strings.Contains(expl, k) {
			return true
		}
	}
	return false
}
