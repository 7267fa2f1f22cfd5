// Package textutil 提供推文文本的纯函数解析
package textutil

import (
	"regexp"
	"strings"
)

var (
	hashtagRe = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
)

// MaxTagLength 超长的话题直接忽略
const MaxTagLength = 100

// Extracted 从正文中解析出的话题与提及，均为小写、去重、保持出现顺序
type Extracted struct {
	Hashtags []string
	Mentions []string
}

// Extract 解析正文，不做任何存储
func Extract(text string) Extracted {
	return Extracted{
		Hashtags: collect(hashtagRe, text),
		Mentions: collect(mentionRe, text),
	}
}

func collect(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		v := strings.ToLower(m[1])
		if len(v) > MaxTagLength {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Preview 截断为最多 n 个字符
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
