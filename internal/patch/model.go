package patch

// Model is the format-agnostic result of loading a patch: scheduler settings
// plus one definition per DSP node, in declaration order.
type Model struct {
	Settings Settings
	Nodes    []*NodeDef
}

// Settings mirrors the optional `patch` block.
type Settings struct {
	// Threads is the requested worker-pool size, driver included. 0 means
	// not set.
	Threads int
	// Strategy names the back-off strategy. Empty means not set.
	Strategy string
	// Parallelism overrides the builder's inference when non-nil.
	Parallelism *bool
}

// NodeDef describes one DSP node before compilation.
type NodeDef struct {
	// Name is the node's unique label.
	Name string
	// After lists the names of the node's predecessors.
	After []string
	// WorkMicros is the simulated kernel cost in microseconds.
	WorkMicros float64
	// Gain scales the node's synthetic oscillator output.
	Gain float64
}
