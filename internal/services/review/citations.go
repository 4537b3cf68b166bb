package review

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// verification is the structured outcome of one grounded claim check
type verification struct {
	Classification models.ClaimClassification
	Analysis       string
	Alternatives   []models.ClaimAlternative
	Citations      []models.Citation
}

// verdictNotMedical is the label the verification prompt uses for spans
// that turn out not to assert a medical fact
const verdictNotMedical = "NOT_MEDICAL"

// structureVerification turns a grounded model response into a
// verification record: sources deduplicated into an ordered citation
// list, inline markers inserted over the response text, then the
// labelled sections (verdict, analysis, alternatives) parsed out.
func structureVerification(resp *interfaces.GenerateResponse) *verification {
	citations, remap := dedupeSources(resp.Sources)
	annotated := insertCitationMarkers(resp.Text, resp.Supports, remap)

	verdict, body := splitVerdict(annotated)
	analysis, alternatives := splitAlternatives(body)

	classification := models.ClassificationMedicalClaim
	if verdict == verdictNotMedical {
		classification = models.ClassificationNotMedical
	}

	return &verification{
		Classification: classification,
		Analysis:       analysis,
		Alternatives:   alternatives,
		Citations:      citations,
	}
}

// dedupeSources collapses grounding sources into an ordered citation
// list, deduplicated by URI. The returned remap translates source
// indices into 1-based citation numbers so inline markers stay
// consistent with the deduplicated list.
func dedupeSources(sources []interfaces.GroundingSource) ([]models.Citation, map[int]int) {
	var citations []models.Citation
	remap := make(map[int]int, len(sources))
	byURI := make(map[string]int, len(sources))

	for i, src := range sources {
		if src.URI == "" && src.Title == "" {
			continue
		}
		if n, seen := byURI[src.URI]; seen && src.URI != "" {
			remap[i] = n
			continue
		}
		citations = append(citations, models.Citation{Title: src.Title, URI: src.URI})
		byURI[src.URI] = len(citations)
		remap[i] = len(citations)
	}

	return citations, remap
}

// insertCitationMarkers appends a [n][score] reference after each
// grounded span, walking supports in start order. Offsets are byte
// positions into the response text; out-of-range segments are clamped
// rather than dropped so one bad segment cannot lose text.
func insertCitationMarkers(text string, supports []interfaces.GroundingSupport, remap map[int]int) string {
	if len(supports) == 0 {
		return text
	}

	ordered := make([]interfaces.GroundingSupport, len(supports))
	copy(ordered, supports)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var b strings.Builder
	last := 0
	for _, sup := range ordered {
		if len(sup.Sources) == 0 {
			continue
		}

		end := sup.End
		if end > len(text) {
			end = len(text)
		}
		if end <= last {
			continue
		}

		ref := marker(sup, remap)
		if ref == "" {
			continue
		}

		b.WriteString(text[last:end])
		b.WriteString(ref)
		last = end
	}
	b.WriteString(text[last:])

	return b.String()
}

// marker renders the inline reference for one grounded span, e.g.
// "[1,3][0.92]". Numbers reference the deduplicated citation list and
// the score is the first confidence value reported for the span.
func marker(sup interfaces.GroundingSupport, remap map[int]int) string {
	nums := make([]string, 0, len(sup.Sources))
	seen := make(map[int]bool, len(sup.Sources))
	for _, idx := range sup.Sources {
		n, ok := remap[idx]
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, strconv.Itoa(n))
	}
	if len(nums) == 0 {
		return ""
	}

	if len(sup.Scores) > 0 {
		return fmt.Sprintf("[%s][%.2f]", strings.Join(nums, ","), sup.Scores[0])
	}
	return fmt.Sprintf("[%s]", strings.Join(nums, ","))
}

// splitVerdict strips the leading "VERDICT:" line the verification
// prompt asks for. Responses without one keep the medical claim
// classification since the identification pass already flagged the span.
func splitVerdict(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "VERDICT:") {
		return "", trimmed
	}

	line := trimmed
	rest := ""
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		line = trimmed[:i]
		rest = trimmed[i+1:]
	}

	verdict := strings.TrimSpace(strings.TrimPrefix(line, "VERDICT:"))
	verdict = strings.ToUpper(strings.ReplaceAll(verdict, " ", "_"))

	return verdict, strings.TrimSpace(rest)
}

var alternativeItemPattern = regexp.MustCompile(`\n\d+\.`)

// splitAlternatives separates the analysis body from the numbered
// "Alternatives:" list and parses each improved claim with its
// "Explanation:" rationale. Items missing either half are dropped.
func splitAlternatives(text string) (string, []models.ClaimAlternative) {
	parts := strings.SplitN(text, "\nAlternatives:", 2)

	analysis := strings.TrimSpace(parts[0])
	analysis = strings.TrimSpace(strings.TrimPrefix(analysis, "Claim Analysis:"))
	if len(parts) < 2 {
		return analysis, nil
	}

	var alternatives []models.ClaimAlternative
	for _, item := range alternativeItemPattern.Split(parts[1], -1) {
		improved, explanation, found := strings.Cut(item, "Explanation:")
		if !found {
			continue
		}
		improved = strings.TrimSpace(improved)
		explanation = strings.TrimSpace(explanation)
		if improved == "" || explanation == "" {
			continue
		}
		alternatives = append(alternatives, models.ClaimAlternative{
			ImprovedClaim: improved,
			Explanation:   explanation,
		})
	}

	return analysis, alternatives
}
