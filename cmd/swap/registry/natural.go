package registry

import (
	"sort"
	"strings"

	"github.com/gigurra/trackswap/cmd/swap/keys"
	"github.com/samber/lo"
)

// CompareNatural orders strings with embedded numbers by numeric value
// ("track2" < "track10"), ignoring case in the text parts.
func CompareNatural(a, b string) int {
	ia, ib := 0, 0
	for ia < len(a) && ib < len(b) {
		if isDigit(a[ia]) && isDigit(b[ib]) {
			ea, eb := digitsEnd(a, ia), digitsEnd(b, ib)
			if c := compareNumbers(a[ia:ea], b[ib:eb]); c != 0 {
				return c
			}
			// Same value: fewer leading zeros first.
			if c := compareInts(ea-ia, eb-ib); c != 0 {
				return c
			}
			ia, ib = ea, eb
			continue
		}

		ta, tb := textEnd(a, ia), textEnd(b, ib)
		if c := strings.Compare(strings.ToLower(a[ia:ta]), strings.ToLower(b[ib:tb])); c != 0 {
			return c
		}
		ia, ib = ta, tb
	}
	return compareInts(len(a)-ia, len(b)-ib)
}

// NaturalLess is CompareNatural as a less function.
func NaturalLess(a, b string) bool {
	return CompareNatural(a, b) < 0
}

func compareNumbers(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := compareInts(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitsEnd(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

func textEnd(s string, i int) int {
	for i < len(s) && !isDigit(s[i]) {
		i++
	}
	return i
}

// entryLess sorts by track name, then relative path, then key.
func entryLess(a, b Entry) bool {
	if c := CompareNatural(keys.TrackName(a.Key), keys.TrackName(b.Key)); c != 0 {
		return c < 0
	}
	if c := CompareNatural(a.Asset.RelativePath, b.Asset.RelativePath); c != 0 {
		return c < 0
	}
	return CompareNatural(a.Key, b.Key) < 0
}

// OriginGroup collects the entries contributed by one origin.
type OriginGroup struct {
	OriginID   string
	OriginName string
	Entries    []Entry
}

// GroupByOrigin groups entries per origin (case-insensitive id), sorted by
// origin name, each group's entries in natural order.
func GroupByOrigin(entries []Entry) []OriginGroup {
	grouped := lo.GroupBy(entries, func(e Entry) string {
		return strings.ToLower(e.Asset.OriginID)
	})

	groups := make([]OriginGroup, 0, len(grouped))
	for _, list := range grouped {
		first := list[0].Asset
		name := first.OriginName
		if strings.TrimSpace(name) == "" {
			name = first.OriginID
		}
		sorted := append([]Entry(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool { return entryLess(sorted[i], sorted[j]) })
		groups = append(groups, OriginGroup{OriginID: first.OriginID, OriginName: name, Entries: sorted})
	}

	sort.Slice(groups, func(i, j int) bool {
		ni, nj := strings.ToLower(groups[i].OriginName), strings.ToLower(groups[j].OriginName)
		if ni != nj {
			return ni < nj
		}
		return strings.ToLower(groups[i].OriginID) < strings.ToLower(groups[j].OriginID)
	})
	return groups
}
