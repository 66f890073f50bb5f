package models

// The selection AST. A Program is an ordered list of Rules over a default
// selection; a Rule is an OR of top-level IfStatements; an IfStatement is an
// AND of Comparisons plus an AND of nested IfStatements. The tree is built
// once at deserialization time and never mutated afterwards.

type RoutingType string

const (
	RoutingTypePriority            RoutingType = "priority"
	RoutingTypeVolumeSplit         RoutingType = "volume_split"
	RoutingTypeVolumeSplitPriority RoutingType = "volume_split_priority"
)

type ComparisonType string

const (
	CompareEqual            ComparisonType = "equal"
	CompareNotEqual         ComparisonType = "not_equal"
	CompareLessThan         ComparisonType = "less_than"
	CompareLessThanEqual    ComparisonType = "less_than_equal"
	CompareGreaterThan      ComparisonType = "greater_than"
	CompareGreaterThanEqual ComparisonType = "greater_than_equal"
)

type ValueKind string

const (
	ValueNumber            ValueKind = "number"
	ValueEnum              ValueKind = "enum_variant"
	ValueStr               ValueKind = "str_value"
	ValueMetadata          ValueKind = "metadata_variant"
	ValueNumberArray       ValueKind = "number_array"
	ValueEnumArray         ValueKind = "enum_variant_array"
	ValueNumberComparisons ValueKind = "number_comparison_array"
)

type MetadataValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NumberComparison is one (operator, bound) pair of a ranged comparison.
type NumberComparison struct {
	ComparisonType ComparisonType `json:"comparison_type"`
	Number         int64          `json:"number"`
}

// Value is the right-hand side of a Comparison. Kind selects which field is
// populated.
type Value struct {
	Kind              ValueKind          `json:"type"`
	Number            int64              `json:"number,omitempty"`
	EnumVariant       string             `json:"enum_variant,omitempty"`
	StrValue          string             `json:"str_value,omitempty"`
	MetadataVariant   *MetadataValue     `json:"metadata_variant,omitempty"`
	NumberArray       []int64            `json:"number_array,omitempty"`
	EnumVariantArray  []string           `json:"enum_variant_array,omitempty"`
	NumberComparisons []NumberComparison `json:"number_comparison_array,omitempty"`
}

// Comparison binds a fact name to an operator and a value.
type Comparison struct {
	Lhs        string         `json:"lhs"`
	Comparison ComparisonType `json:"comparison"`
	Value      Value          `json:"value"`
}

// IfStatement matches when all its Comparisons and all nested statements hold.
type IfStatement struct {
	Condition []Comparison  `json:"condition"`
	Nested    []IfStatement `json:"nested,omitempty"`
}

type Rule struct {
	Name        string        `json:"name"`
	RoutingType RoutingType   `json:"routing_type"`
	Output      Output        `json:"output"`
	Statements  []IfStatement `json:"statements"`
}

type OutputKind string

const (
	OutputSingle              OutputKind = "single"
	OutputPriority            OutputKind = "priority"
	OutputVolumeSplit         OutputKind = "volume_split"
	OutputVolumeSplitPriority OutputKind = "volume_split_priority"
)

// VolumeSplitConnector weights a single connector branch; a list of these
// partitions traffic. Callers validate that splits sum to 100.
type VolumeSplitConnector struct {
	Split  int                     `json:"split"`
	Output RoutableConnectorChoice `json:"output"`
}

// VolumeSplitPriority weights a priority-list branch.
type VolumeSplitPriority struct {
	Split  int                       `json:"split"`
	Output []RoutableConnectorChoice `json:"output"`
}

// Output is the leaf of a Rule or the default selection of a Program.
type Output struct {
	Kind                OutputKind                `json:"type"`
	Single              *RoutableConnectorChoice  `json:"single,omitempty"`
	Priority            []RoutableConnectorChoice `json:"priority,omitempty"`
	VolumeSplit         []VolumeSplitConnector    `json:"volume_split,omitempty"`
	VolumeSplitPriority []VolumeSplitPriority     `json:"volume_split_priority,omitempty"`
}

// Program is a complete advanced routing algorithm.
type Program struct {
	Globals          map[string][]string    `json:"globals,omitempty"`
	DefaultSelection Output                 `json:"default_selection"`
	Rules            []Rule                 `json:"rules"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}
