package types

type AgentConfig struct {
	Episodes    int
	Horizon     int
	Policy      Policy
	Environment Environment
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config      *AgentConfig
	policy      Policy
	environment Environment
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:      config,
		policy:      config.Policy,
		environment: config.Environment,
	}
}

// RunEpisode runs a single episode, the outcome is stored in the episode context
func (a *Agent) RunEpisode(eCtx *EpisodeContext) {
	state, err := a.environment.Reset(eCtx)
	if err != nil {
		eCtx.SetError(err)
		return
	}
	a.policy.ResetEpisode(eCtx)
	actions := state.Actions()

	for i := 0; i < a.config.Horizon; i++ {
		select {
		case <-eCtx.Context.Done():
			return
		default:
		}
		if len(actions) == 0 {
			break
		}

		sCtx := &StepContext{Step: i, EpisodeContext: eCtx}
		nextAction, ok := a.policy.NextAction(sCtx, state, actions)
		if !ok {
			break
		}
		nextState, reward, err := a.environment.Step(nextAction, sCtx)
		if err != nil {
			eCtx.SetError(err)
			return
		}
		a.policy.Update(sCtx, state, nextAction, reward, nextState)

		eCtx.Trace.Append(i, state, nextAction, reward, nextState)
		eCtx.Timesteps += 1
		state = nextState
		actions = nextState.Actions()
	}

	if len(actions) == 0 {
		eCtx.Terminal = true
	} else if eCtx.Timesteps >= a.config.Horizon {
		eCtx.HorizonEnd = true
	}
	a.policy.UpdateIteration(eCtx.Episode, eCtx.Trace)
}
