package main

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// rankingMarker is the header evaluators are instructed to emit before their
// final ranking. Matched case-sensitively.
const rankingMarker = "FINAL RANKING:"

var (
	// "1. Response A" - numbered list entries with full labels. The trailing
	// boundary rejects multi-letter tokens like "Response AB".
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]\b`)

	// "Response A" anywhere in free text
	labelPattern = regexp.MustCompile(`Response [A-Z]\b`)

	// "1. B" - numbered list entries with bare letters
	numberedLetterPattern = regexp.MustCompile(`\d+\.\s*([A-Z])(?:[\s,.]|$)`)

	// "B > A > C" - inequality chains; token validity is checked separately
	letterChainPattern = regexp.MustCompile(`[A-Za-z]+(?:\s*>\s*[A-Za-z]+)+`)
)

// ParseRankingFromText extracts an ordered best-first list of response labels
// from a model's free-form evaluation text. Strategies are tried in priority
// order and the first one that yields at least one match wins:
//
//  1. numbered full labels after a "FINAL RANKING:" marker
//  2. numbered bare letters after the marker, reconstructed as labels
//  3. (no marker) numbered full labels anywhere in the text
//  4. any label mention in first-appearance order, deduplicated
//  5. an inequality chain of single uppercase letters ("B > A > C")
//
// Returns an empty slice when nothing recognizable is found; never fails.
func ParseRankingFromText(rankingText string) []string {
	if idx := strings.Index(rankingText, rankingMarker); idx >= 0 {
		section := rankingText[idx:]

		if matches := numberedLabelPattern.FindAllString(section, -1); len(matches) > 0 {
			return stripOrdinals(matches)
		}

		if matches := numberedLetterPattern.FindAllStringSubmatch(section, -1); len(matches) > 0 {
			results := make([]string, 0, len(matches))
			for _, match := range matches {
				results = append(results, "Response "+match[1])
			}
			return results
		}
	} else if matches := numberedLabelPattern.FindAllString(rankingText, -1); len(matches) > 0 {
		return stripOrdinals(matches)
	}

	// Fallback: any "Response X" mentions, first-seen order, no duplicates
	if matches := labelPattern.FindAllString(rankingText, -1); len(matches) > 0 {
		seen := make(map[string]bool, len(matches))
		results := make([]string, 0, len(matches))
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				results = append(results, match)
			}
		}
		return results
	}

	// Last resort: an inequality chain such as "B > A > C"
	if chain := letterChainPattern.FindString(rankingText); chain != "" {
		tokens := strings.Split(chain, ">")
		results := make([]string, 0, len(tokens))
		for _, token := range tokens {
			token = strings.TrimSpace(token)
			if len(token) != 1 || token[0] < 'A' || token[0] > 'Z' {
				return []string{}
			}
			results = append(results, "Response "+token)
		}
		return results
	}

	return []string{}
}

// stripOrdinals reduces numbered list entries to their bare labels.
func stripOrdinals(matches []string) []string {
	results := make([]string, 0, len(matches))
	for _, match := range matches {
		if resp := labelPattern.FindString(match); resp != "" {
			results = append(results, resp)
		}
	}
	return results
}

// ResponseLabel returns the anonymized label for the i-th response entry.
// Labels follow spreadsheet column naming: A..Z, then AA, AB and so on.
func ResponseLabel(i int) string {
	letters := ""
	for n := i + 1; n > 0; {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return "Response " + letters
}

// AnonymizeResponses assigns positional labels to the Stage 1 responses and
// returns the labeled pairs for prompt construction plus the label-to-model
// mapping used later for de-anonymization. Labels are assigned strictly by
// position, so identical input always yields identical labels.
func AnonymizeResponses(stage1Results []Stage1Response) ([]LabeledResponse, map[string]string) {
	labelToModel := make(map[string]string, len(stage1Results))
	labeled := make([]LabeledResponse, 0, len(stage1Results))

	for i, result := range stage1Results {
		label := ResponseLabel(i)
		labelToModel[label] = result.Model
		labeled = append(labeled, LabeledResponse{Label: label, Response: result.Response})
	}

	return labeled, labelToModel
}

// CalculateAggregateRankings computes aggregate rankings across all
// evaluators. Each label at position i in a parsed ranking contributes rank
// i+1 to the model behind that label; labels that don't resolve through the
// mapping are skipped. Models are reported with the arithmetic mean of their
// ranks rounded to two decimals and sorted ascending (lower is better); the
// stable sort keeps first-encountered order among exact ties.
func CalculateAggregateRankings(stage2Results []Stage2Ranking, labelToModel map[string]string) []AggregateRanking {
	modelPositions := make(map[string][]int)
	var modelOrder []string

	for _, ranking := range stage2Results {
		for position, label := range ranking.ParsedRanking {
			modelName, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := modelPositions[modelName]; !seen {
				modelOrder = append(modelOrder, modelName)
			}
			modelPositions[modelName] = append(modelPositions[modelName], position+1)
		}
	}

	aggregate := make([]AggregateRanking, 0, len(modelOrder))
	for _, model := range modelOrder {
		positions := modelPositions[model]
		sum := 0
		for _, pos := range positions {
			sum += pos
		}
		avgRank := roundRank(float64(sum) / float64(len(positions)))

		aggregate = append(aggregate, AggregateRanking{
			Model:         model,
			AverageRank:   avgRank,
			RankingsCount: len(positions),
		})
	}

	sort.SliceStable(aggregate, func(i, j int) bool {
		return aggregate[i].AverageRank < aggregate[j].AverageRank
	})

	return aggregate
}

// roundRank rounds to two decimal places, half up.
func roundRank(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
