package tracking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

// SummarizeCarrierMix describes the carrier composition of a batch, e.g.
// "UPS × 2, USPS × 1". Carriers are ordered by descending count, then by
// name. An empty batch yields "".
func SummarizeCarrierMix(batch []domain.BatchEntry) string {
	carriers := make([]domain.Carrier, len(batch))
	for i, e := range batch {
		carriers[i] = e.Carrier
	}
	return summarize(carriers)
}

// SummarizeParsed is SummarizeCarrierMix for raw extractor output.
func SummarizeParsed(found []domain.ParsedTrackingNumber) string {
	carriers := make([]domain.Carrier, len(found))
	for i, p := range found {
		carriers[i] = p.Carrier
	}
	return summarize(carriers)
}

type carrierCount struct {
	carrier domain.Carrier
	n       int
}

func summarize(carriers []domain.Carrier) string {
	if len(carriers) == 0 {
		return ""
	}
	counts := make(map[domain.Carrier]int)
	for _, c := range carriers {
		counts[c]++
	}

	tally := make([]carrierCount, 0, len(counts))
	for c, n := range counts {
		tally = append(tally, carrierCount{carrier: c, n: n})
	}
	sort.Slice(tally, func(i, j int) bool {
		if tally[i].n != tally[j].n {
			return tally[i].n > tally[j].n
		}
		return tally[i].carrier < tally[j].carrier
	})

	parts := make([]string, len(tally))
	for i, t := range tally {
		parts[i] = fmt.Sprintf("%s × %d", t.carrier, t.n)
	}
	return strings.Join(parts, ", ")
}
