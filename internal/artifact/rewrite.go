package artifact

import (
	"cmp"
	"slices"
	"strings"
)

// refDirs are the bundle subdirectories whose references get rewritten.
var refDirs = []string{assetsDir + "/", soundsDir + "/"}

// RewriteAssetRefs replaces placeholder references in html with final bundle
// paths. targets maps a placeholder such as "assets/wheel" to its final
// relative path such as "assets/wheel.webp".
//
// Keys are tried longest first and only whole references match: the key must
// not be preceded by an identifier character and must be followed, after an
// optional short extension, by a non-identifier character or the end of the
// input. "assets/wheel" therefore never matches inside "assets/wheelFrame.png".
// Each reference is rewritten at most once.
func RewriteAssetRefs(html string, targets map[string]string) string {
	if len(targets) == 0 || html == "" {
		return html
	}
	keys := make([]string, 0, len(targets))
	for key := range targets {
		if key != "" {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	var out strings.Builder
	out.Grow(len(html))
	i := 0
	for i < len(html) {
		next := nextRefStart(html, i)
		if next < 0 {
			out.WriteString(html[i:])
			break
		}
		out.WriteString(html[i:next])
		key, end := matchRef(html, next, keys)
		if key == "" {
			out.WriteByte(html[next])
			i = next + 1
			continue
		}
		out.WriteString(targets[key])
		i = end
	}
	return out.String()
}

// nextRefStart finds the next position at or after from where a reference
// directory prefix begins on an identifier boundary.
func nextRefStart(html string, from int) int {
	best := -1
	for _, dir := range refDirs {
		pos := from
		for {
			idx := strings.Index(html[pos:], dir)
			if idx < 0 {
				break
			}
			idx += pos
			if idx == 0 || !isIdentByte(html[idx-1]) {
				if best < 0 || idx < best {
					best = idx
				}
				break
			}
			pos = idx + 1
		}
	}
	return best
}

// matchRef returns the longest key that matches at pos and the index just past
// the reference, including any extension.
func matchRef(html string, pos int, keys []string) (string, int) {
	rest := html[pos:]
	for _, key := range keys {
		if !strings.HasPrefix(rest, key) {
			continue
		}
		end, ok := skipExtension(html, pos+len(key))
		if !ok || (end < len(html) && isIdentByte(html[end])) {
			continue
		}
		return key, end
	}
	return "", pos
}

// skipExtension consumes ".ext" (1-5 alphanumerics) when present. It reports
// false when the run after the dot is too long or runs into an identifier, in
// which case the reference names some other file.
func skipExtension(html string, pos int) (int, bool) {
	if pos >= len(html) || html[pos] != '.' {
		return pos, true
	}
	j := pos + 1
	for j < len(html) && isAlnum(html[j]) {
		j++
	}
	switch {
	case j == pos+1:
		return pos, true
	case j-pos-1 > 5:
		return pos, false
	case j < len(html) && isIdentByte(html[j]):
		return pos, false
	}
	return j, true
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
