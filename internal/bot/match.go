package bot

import "strings"

// MatchesKeywords reports whether text contains any of the keywords as a
// substring. An empty keyword list matches everything, including empty
// text.
func MatchesKeywords(text string, keywords []string, caseSensitive bool) bool {
	if len(keywords) == 0 {
		return true
	}
	search := text
	if !caseSensitive {
		search = strings.ToLower(text)
	}
	for _, keyword := range keywords {
		if !caseSensitive {
			keyword = strings.ToLower(keyword)
		}
		if strings.Contains(search, keyword) {
			return true
		}
	}
	return false
}
