package strategy

import (
	"crossover-lab/internal/domain"
)

// FromConfig creates the crossover Strategy described by a run configuration.
// Window and MA-kind errors come from the indicator package.
func FromConfig(cfg domain.RunConfig) (Strategy, error) {
	s, err := NewCrossoverStrategy(cfg.FastWindow, cfg.SlowWindow, cfg.MAKind)
	if err != nil {
		return nil, err
	}
	return s, nil
}
