package types

// Environment that the agent interacts with
// Ctx methods to propagate the context for timeOut setting
type Environment interface {
	// Reset called at the start of each episode
	Reset(*EpisodeContext) (State, error)
	// Step takes the action and returns the next state and the reward for the transition
	Step(Action, *StepContext) (State, float64, error)
}

// State of the system that RL policies observe
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
	// Actions possible from the state, an empty list marks a terminal state
	Actions() []Action
}

// And Action that RL policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}

// EnvironmentConstructor creates independent environments for parallel runs
type EnvironmentConstructor interface {
	// NewEnvironment creates a new environment with the given instance number.
	NewEnvironment(int) Environment
}
