package engine

// StepStartEvent is emitted before a command is evaluated
type StepStartEvent struct {
	Command Command `json:"command"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
}

// StepCompleteEvent is emitted after a command is evaluated
type StepCompleteEvent struct {
	Command Command    `json:"command"`
	Index   int        `json:"index"`
	Result  StepResult `json:"result"`
}

// GoalReachedEvent is emitted when the robot stands on the goal
type GoalReachedEvent struct {
	Position Position `json:"position"`
}

// Observer receives execution signals. Methods are called synchronously on
// the executing goroutine and must not call back into the same Executor's
// Execute.
type Observer interface {
	StepStarted(StepStartEvent)
	StepCompleted(StepCompleteEvent)
	GoalReached(GoalReachedEvent)
}

// ObserverFuncs adapts optional callbacks to the Observer interface
type ObserverFuncs struct {
	OnStepStart    func(StepStartEvent)
	OnStepComplete func(StepCompleteEvent)
	OnGoalReached  func(GoalReachedEvent)
}

func (o ObserverFuncs) StepStarted(e StepStartEvent) {
	if o.OnStepStart != nil {
		o.OnStepStart(e)
	}
}

func (o ObserverFuncs) StepCompleted(e StepCompleteEvent) {
	if o.OnStepComplete != nil {
		o.OnStepComplete(e)
	}
}

func (o ObserverFuncs) GoalReached(e GoalReachedEvent) {
	if o.OnGoalReached != nil {
		o.OnGoalReached(e)
	}
}

// NopObserver ignores every signal
type NopObserver struct{}

func (NopObserver) StepStarted(StepStartEvent)       {}
func (NopObserver) StepCompleted(StepCompleteEvent) {}
func (NopObserver) GoalReached(GoalReachedEvent)     {}

// MultiObserver fans signals out in order
type MultiObserver []Observer

func (m MultiObserver) StepStarted(e StepStartEvent) {
	for _, o := range m {
		o.StepStarted(e)
	}
}

func (m MultiObserver) StepCompleted(e StepCompleteEvent) {
	for _, o := range m {
		o.StepCompleted(e)
	}
}

func (m MultiObserver) GoalReached(e GoalReachedEvent) {
	for _, o := range m {
		o.GoalReached(e)
	}
}

// Observers combines the non-nil observers into one
func Observers(observers ...Observer) Observer {
	var multi MultiObserver
	for _, o := range observers {
		if o != nil {
			multi = append(multi, o)
		}
	}
	switch len(multi) {
	case 0:
		return NopObserver{}
	case 1:
		return multi[0]
	}
	return multi
}
