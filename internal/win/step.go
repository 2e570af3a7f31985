package win

import "fmt"

type Step int

const (
	StepCongratulations Step = iota
	StepFillOrder
	StepSettleOrder
	StepComplete
)

var stepNames = [...]string{
	StepCongratulations: "congratulations",
	StepFillOrder:       "fill_order",
	StepSettleOrder:     "settle_order",
	StepComplete:        "complete",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	step, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = step
	return nil
}
