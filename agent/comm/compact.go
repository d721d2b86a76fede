package comm

import (
	"fmt"
	"unicode/utf8"

	"github.com/hildam/relay-flow-go/entity/consts"
)

// truncatedMarker 截断标记，记录被省略的字符数
const truncatedMarker = "\n\n[...Truncated %d chars...]"

// Compact 将上下文压缩到 maxLength 个字符以内，超出部分以标记说明省略的字符数。
// 对已经带有标记的文本用更小的长度再次压缩时，标记本身也会被截断，
// 调用方应对每个产物只压缩一次。
func Compact(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = consts.DefaultMaxContextLength
	}

	length := utf8.RuneCountInString(text)
	if text == "" || length <= maxLength {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxLength]) + fmt.Sprintf(truncatedMarker, length-maxLength)
}
