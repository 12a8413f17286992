package serial

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Size 台身尺寸变体
type Size string

// Color 台呢颜色变体
type Color string

const (
	SizeStandard Size = "7ft" // 标准尺寸，序列号无后缀
	SizeSixFoot  Size = "6ft"

	ColorDefault  Color = "black" // 默认颜色，序列号无后缀
	ColorGreen    Color = "green"
	ColorGrey     Color = "grey"
	ColorBlue     Color = "blue"
	ColorBurgundy Color = "burgundy"
)

// Variant 从序列号解码出的构型，引擎内部只传递该类型，不再二次解析字符串
type Variant struct {
	Base  int
	Size  Size
	Color Color
}

// Table 序列号后缀表。尺寸是单一固定后缀；颜色后缀按长度降序匹配，
// 避免短代码误中长代码的结尾（如 G 命中 BG）。
type Table struct {
	sizeSuffix   map[Size]string
	colorSuffix  map[Color]string
	colorOrdered []Color // 按后缀长度降序
}

// NewTable 根据配置构造后缀表；空表项回退到默认值
func NewTable(sizes map[Size]string, colors map[Color]string) *Table {
	if len(sizes) == 0 {
		sizes = map[Size]string{SizeSixFoot: "SF"}
	}
	if len(colors) == 0 {
		colors = map[Color]string{
			ColorGreen:    "G",
			ColorGrey:     "GR",
			ColorBlue:     "B",
			ColorBurgundy: "BG",
		}
	}
	t := &Table{sizeSuffix: sizes, colorSuffix: colors}
	for c := range colors {
		t.colorOrdered = append(t.colorOrdered, c)
	}
	sort.Slice(t.colorOrdered, func(i, j int) bool {
		a, b := colors[t.colorOrdered[i]], colors[t.colorOrdered[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return t
}

// Sizes 后缀表覆盖的尺寸变体（不含无后缀的标准尺寸）
func (t *Table) Sizes() []Size {
	out := make([]Size, 0, len(t.sizeSuffix))
	for s := range t.sizeSuffix {
		out = append(out, s)
	}
	return out
}

// Default 编译期内置的后缀表
var Default = NewTable(nil, nil)

// Decode 解析序列号。后缀不认识时回退到标准尺寸/默认颜色，
// 编号取前导数字段；完全没有数字编号时才报错。
func (t *Table) Decode(s string) (Variant, error) {
	v := Variant{Size: SizeStandard, Color: ColorDefault}
	rest := strings.TrimSpace(s)

	// 先剥颜色后缀（长代码优先），再剥尺寸后缀
	for _, c := range t.colorOrdered {
		suffix := t.colorSuffix[c]
		if suffix != "" && strings.HasSuffix(rest, suffix) {
			v.Color = c
			rest = strings.TrimSuffix(rest, suffix)
			break
		}
	}
	for size, suffix := range t.sizeSuffix {
		if suffix != "" && strings.HasSuffix(rest, suffix) {
			v.Size = size
			rest = strings.TrimSuffix(rest, suffix)
			break
		}
	}

	digits := rest
	for i, r := range rest {
		if r < '0' || r > '9' {
			digits = rest[:i]
			break
		}
	}
	base, err := strconv.Atoi(digits)
	if err != nil {
		return Variant{}, fmt.Errorf("序列号 %q 缺少数字编号", s)
	}
	v.Base = base
	return v, nil
}

// Encode 生成规范序列号：数字编号 + 尺寸后缀 + 颜色后缀
func (t *Table) Encode(v Variant) string {
	return strconv.Itoa(v.Base) + t.sizeSuffix[v.Size] + t.colorSuffix[v.Color]
}

// Next 编号+1，保留原尺寸/颜色
func (t *Table) Next(s string) (string, error) {
	v, err := t.Decode(s)
	if err != nil {
		return "", err
	}
	v.Base++
	return t.Encode(v), nil
}

// Decode 使用默认后缀表解析
func Decode(s string) (Variant, error) { return Default.Decode(s) }

// Encode 使用默认后缀表编码
func Encode(v Variant) string { return Default.Encode(v) }

// Next 使用默认后缀表生成下一个序列号
func Next(s string) (string, error) { return Default.Next(s) }
