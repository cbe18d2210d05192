package gamedata

import "strings"

// NormalizeTag upper-cases a player or clan tag, maps the letter O to zero
// (tags never contain O) and ensures a single leading '#'.
func NormalizeTag(tag string) string {
	t := strings.ToUpper(strings.TrimSpace(tag))
	t = strings.TrimLeft(t, "#")
	if t == "" {
		return ""
	}
	t = strings.ReplaceAll(t, "O", "0")
	return "#" + t
}
