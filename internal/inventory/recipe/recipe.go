package recipe

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/viper"

	"github.com/bitfantasy/nimo-inventory/internal/inventory/serial"
)

// ErrUnknownRecipe 机型/尺寸未注册，属于配置错误而非运行时状态
var ErrUnknownRecipe = errors.New("未知的机型或尺寸配方")

// Cut 开料方式
type Cut string

const (
	CutLong  Cut = "long"
	CutShort Cut = "short"
)

// Item 配方明细：一台需要消耗的某个部件数量。
// WrapEvery > 0 表示共享耗材（如一卷台呢包7台），执行器按整卷计数扣减，
// Qty 此时无效，单台用量视为 1/WrapEvery。
type Item struct {
	Part      string  `mapstructure:"part"`
	Qty       float64 `mapstructure:"qty"`
	WrapEvery int     `mapstructure:"wrap_every"`
}

// Override 尺寸变体替换：先移除再追加
type Override struct {
	Size   string   `mapstructure:"size"`
	Remove []string `mapstructure:"remove"`
	Add    []Item   `mapstructure:"add"`
}

// Recipe 机型基础配方 + 尺寸变体替换
type Recipe struct {
	UnitType  string     `mapstructure:"unit_type"`
	Items     []Item     `mapstructure:"items"`
	Overrides []Override `mapstructure:"overrides"`
}

// YieldOutput 一次开料产出的某种部件数量
type YieldOutput struct {
	Part string  `mapstructure:"part"`
	Qty  float64 `mapstructure:"qty"`
}

// YieldRule 出材率规则：一张板材按开料方式产出若干长/短件，产出随尺寸变体变化
type YieldRule struct {
	Sheet   string        `mapstructure:"sheet"`
	Size    string        `mapstructure:"size"`
	Cut     Cut           `mapstructure:"cut"`
	Outputs []YieldOutput `mapstructure:"outputs"`
}

// PairSide 平衡对的一侧：哪个机型/尺寸的成品计数
type PairSide struct {
	UnitType string `mapstructure:"unit_type"`
	Size     string `mapstructure:"size"`
	Label    string `mapstructure:"label"`
}

// Pair 成对部件平衡配置（如台身 vs 同尺寸顶轨）
type Pair struct {
	Name  string   `mapstructure:"name"`
	Left  PairSide `mapstructure:"left"`
	Right PairSide `mapstructure:"right"`
}

type fileConfig struct {
	Recipes    []Recipe         `mapstructure:"recipes"`
	YieldRules []YieldRule      `mapstructure:"yield_rules"`
	Thresholds map[string]int   `mapstructure:"thresholds"`
	Pairs      []Pair           `mapstructure:"pairs"`
	Serial     serialFileConfig `mapstructure:"serial"`
}

type serialFileConfig struct {
	Sizes  map[string]string `mapstructure:"sizes"`
	Colors map[string]string `mapstructure:"colors"`
}

// Registry 配方/出材率/阈值的静态注册表。启动时加载一次，
// 运行期只允许单台用量覆盖这一种修改。
type Registry struct {
	mu          sync.RWMutex
	recipes     map[string]*Recipe
	yields      map[string]*YieldRule
	thresholds  map[string]int
	pairs       map[string]*Pair
	sizes       map[serial.Size]bool
	serialTable *serial.Table
}

// Load 从YAML配置文件加载注册表
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取库存配置文件失败: %w", err)
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析库存配置失败: %w", err)
	}
	return New(cfg.Recipes, cfg.YieldRules, cfg.Thresholds, cfg.Pairs, cfg.Serial.Sizes, cfg.Serial.Colors)
}

// New 由已解析的配置构造注册表
func New(recipes []Recipe, yields []YieldRule, thresholds map[string]int, pairs []Pair, sizeSuffixes, colorSuffixes map[string]string) (*Registry, error) {
	r := &Registry{
		recipes:    make(map[string]*Recipe),
		yields:     make(map[string]*YieldRule),
		thresholds: make(map[string]int),
		pairs:      make(map[string]*Pair),
		sizes:      map[serial.Size]bool{serial.SizeStandard: true},
	}
	for i := range recipes {
		rec := recipes[i]
		if rec.UnitType == "" {
			return nil, fmt.Errorf("配方缺少unit_type")
		}
		if _, dup := r.recipes[rec.UnitType]; dup {
			return nil, fmt.Errorf("机型 %s 的配方重复定义", rec.UnitType)
		}
		r.recipes[rec.UnitType] = &rec
		for _, ov := range rec.Overrides {
			r.sizes[serial.Size(ov.Size)] = true
		}
	}
	for i := range yields {
		y := yields[i]
		if y.Cut != CutLong && y.Cut != CutShort {
			return nil, fmt.Errorf("板材 %s 的开料方式无效: %s", y.Sheet, y.Cut)
		}
		key := yieldKey(y.Sheet, serial.Size(y.Size), y.Cut)
		if _, dup := r.yields[key]; dup {
			return nil, fmt.Errorf("出材率规则重复定义: %s", key)
		}
		r.yields[key] = &y
		r.sizes[serial.Size(y.Size)] = true
	}
	for part, level := range thresholds {
		r.thresholds[part] = level
	}
	for i := range pairs {
		p := pairs[i]
		r.pairs[p.Name] = &p
	}

	var szMap map[serial.Size]string
	if len(sizeSuffixes) > 0 {
		szMap = make(map[serial.Size]string, len(sizeSuffixes))
		for k, v := range sizeSuffixes {
			szMap[serial.Size(k)] = v
		}
	}
	var clMap map[serial.Color]string
	if len(colorSuffixes) > 0 {
		clMap = make(map[serial.Color]string, len(colorSuffixes))
		for k, v := range colorSuffixes {
			clMap[serial.Color(k)] = v
		}
	}
	r.serialTable = serial.NewTable(szMap, clMap)
	for _, s := range r.serialTable.Sizes() {
		r.sizes[s] = true
	}
	return r, nil
}

func yieldKey(sheet string, size serial.Size, cut Cut) string {
	return sheet + "|" + string(size) + "|" + string(cut)
}

// Resolve 解析某机型/尺寸的最终配方：基础明细先应用变体替换。
// 尺寸必须是注册表认识的变体（标准尺寸、后缀表、变体替换或出材率规则
// 声明过的尺寸），否则报未知配方，不返回基础配方充数。
// 返回的是副本，调用方可自由修改。
func (r *Registry) Resolve(unitType string, size serial.Size) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.recipes[unitType]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownRecipe, unitType, size)
	}
	if !r.sizes[size] {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownRecipe, unitType, size)
	}

	removed := make(map[string]bool)
	var added []Item
	for _, ov := range rec.Overrides {
		if serial.Size(ov.Size) != size {
			continue
		}
		for _, part := range ov.Remove {
			removed[part] = true
		}
		added = append(added, ov.Add...)
	}

	items := make([]Item, 0, len(rec.Items)+len(added))
	for _, it := range rec.Items {
		if removed[it.Part] {
			continue
		}
		items = append(items, it)
	}
	items = append(items, added...)
	return items, nil
}

// SetUsage 运行期覆盖单台用量（唯一允许的运行期配方修改）
func (r *Registry) SetUsage(unitType, part string, qty float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recipes[unitType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecipe, unitType)
	}
	for i := range rec.Items {
		if rec.Items[i].Part == part {
			rec.Items[i].Qty = qty
			return nil
		}
	}
	for oi := range rec.Overrides {
		for i := range rec.Overrides[oi].Add {
			if rec.Overrides[oi].Add[i].Part == part {
				rec.Overrides[oi].Add[i].Qty = qty
				return nil
			}
		}
	}
	return fmt.Errorf("机型 %s 的配方中不存在部件 %s", unitType, part)
}

// Yield 查找出材率规则
func (r *Registry) Yield(sheet string, size serial.Size, cut Cut) (*YieldRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, ok := r.yields[yieldKey(sheet, size, cut)]
	if !ok {
		return nil, fmt.Errorf("%w: 板材 %s 在尺寸 %s 下没有 %s 开料规则", ErrUnknownRecipe, sheet, size, cut)
	}
	return y, nil
}

// Threshold 低库存阈值；0 表示未配置（永不告警）
func (r *Registry) Threshold(part string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.thresholds[part]
}

// Thresholds 返回全部阈值配置的副本（巡检用）
func (r *Registry) Thresholds() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.thresholds))
	for k, v := range r.thresholds {
		out[k] = v
	}
	return out
}

// Pair 查找平衡对配置
func (r *Registry) Pair(name string) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[name]
	return p, ok
}

// Pairs 返回全部平衡对
func (r *Registry) Pairs() []*Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	return out
}

// Sizes 注册表认识的全部尺寸变体，按名称排序
func (r *Registry) Sizes() []serial.Size {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]serial.Size, 0, len(r.sizes))
	for s := range r.sizes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SerialTable 序列号后缀表（配置可覆盖内置默认值）
func (r *Registry) SerialTable() *serial.Table {
	return r.serialTable
}

// UnitTypes 已注册的机型列表
func (r *Registry) UnitTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.recipes))
	for t := range r.recipes {
		out = append(out, t)
	}
	return out
}
