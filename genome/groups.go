package genome

import "strings"

// Standard is the data-set type covering the default organism groups.
const Standard = "standard"

var standardGroups = []string{"archaea", "bacteria", "viral", "plasmid", "human", "UniVec_Core"}

// Groups resolves a data-set type to its organism groups in declared order.
// Configured data sets take precedence; "standard" expands to the default
// groups and any other name is treated as a single group of that name.
func Groups(datasetType string, datasets map[string][]string) []string {
	datasetType = strings.TrimSpace(datasetType)
	if groups, ok := datasets[datasetType]; ok && len(groups) > 0 {
		return append([]string(nil), groups...)
	}
	if datasetType == Standard || datasetType == "" {
		return append([]string(nil), standardGroups...)
	}
	return []string{datasetType}
}
