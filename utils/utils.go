package utils

// ContainsString returns true iff the provided string slice hay contains
// string needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// UniqueStrings returns the union of the provided slices with duplicates
// removed, preserving first-seen order.
func UniqueStrings(slices ...[]string) []string {
	seen := map[string]bool{}
	res := []string{}
	for _, slice := range slices {
		for _, str := range slice {
			if seen[str] {
				continue
			}
			seen[str] = true
			res = append(res, str)
		}
	}
	return res
}

// BatchStrings partitions ids into consecutive batches of at most size
// elements. An empty input produces zero batches.
func BatchStrings(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	batches := [][]string{}
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

func Min(a int, b int) int {
	if a < b {
		return a
	}
	return b
}
