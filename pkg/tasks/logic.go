package tasks

// PreLogicInput is the raw `with:` block of a task as parsed from YAML.
// All values are unrendered template strings. SkipIfExists in particular
// stays raw through logic evaluation and is rendered only immediately
// before apply.
type PreLogicInput struct {
	Condition    string      `yaml:"condition,omitempty"`
	Subscribe    string      `yaml:"subscribe,omitempty"`
	Sudo         string      `yaml:"sudo,omitempty"`
	Items        interface{} `yaml:"items,omitempty"`
	Tags         []string    `yaml:"tags,omitempty"`
	DelegateTo   string      `yaml:"delegate_to,omitempty"`
	SkipIfExists string      `yaml:"skip_if_exists,omitempty"`
}

// PreLogicEvaluated is a PreLogicInput after template evaluation against
// the current host scope.
type PreLogicEvaluated struct {
	Condition    bool
	Subscribe    string
	Sudo         string
	Items        []interface{}
	HasItems     bool
	Tags         []string
	DelegateTo   string
	SkipIfExists string
}

// PostLogicInput is the raw `and:` block of a task.
type PostLogicInput struct {
	Notify       string      `yaml:"notify,omitempty"`
	IgnoreErrors interface{} `yaml:"ignore_errors,omitempty"`
	Retry        int         `yaml:"retry,omitempty"`
	Delay        int         `yaml:"delay,omitempty"`
}

// PostLogicEvaluated is a PostLogicInput after template evaluation.
type PostLogicEvaluated struct {
	Notify       string
	IgnoreErrors bool
	Retry        int
	Delay        int
}
