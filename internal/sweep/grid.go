package sweep

import (
	"errors"
	"fmt"

	"crossover-lab/internal/domain"
)

// ErrEmptyGrid is returned when a grid yields no valid (fast, slow) pair.
var ErrEmptyGrid = errors.New("sweep grid has no fast < slow pair")

// Grid is an inclusive range of fast and slow windows.
type Grid struct {
	FastMin, FastMax int
	SlowMin, SlowMax int
	Step             int // defaults to 1
}

// Configs expands the grid into run configs derived from base.
// Pairs with fast >= slow are skipped. Order: fast ASC, then slow ASC.
func (g Grid) Configs(base domain.RunConfig) ([]domain.RunConfig, error) {
	if g.FastMin <= 0 || g.SlowMin <= 0 || g.FastMax < g.FastMin || g.SlowMax < g.SlowMin {
		return nil, fmt.Errorf("%w: fast [%d, %d] slow [%d, %d]", ErrEmptyGrid, g.FastMin, g.FastMax, g.SlowMin, g.SlowMax)
	}
	step := g.Step
	if step <= 0 {
		step = 1
	}

	var configs []domain.RunConfig
	for fast := g.FastMin; fast <= g.FastMax; fast += step {
		for slow := g.SlowMin; slow <= g.SlowMax; slow += step {
			if fast >= slow {
				continue
			}
			cfg := base
			cfg.FastWindow = fast
			cfg.SlowWindow = slow
			// per-bar trace logging from parallel runs would interleave
			cfg.LogTrace = false
			configs = append(configs, cfg)
		}
	}

	if len(configs) == 0 {
		return nil, ErrEmptyGrid
	}
	return configs, nil
}
