package strategy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"algotrader/internal/domain"
)

const voteEpsilon = 1e-9

type WeightedStrategy struct {
	Strategy *BufferedSignalStrategy
	Weight   float64
}

// CombinedWeightedSignalStrategy votes across member strategies. A row is
// BUY when the BUY share of total weight reaches buyThreshold and at least
// one member voted BUY; SELL likewise.
type CombinedWeightedSignalStrategy struct {
	members       []WeightedStrategy
	buyThreshold  float64
	sellThreshold float64
}

func NewCombinedWeightedSignalStrategy(members []WeightedStrategy, buyThreshold, sellThreshold float64) (*CombinedWeightedSignalStrategy, error) {
	if buyThreshold < 0 || buyThreshold > 1 || sellThreshold < 0 || sellThreshold > 1 {
		return nil, fmt.Errorf("%w: thresholds must be in [0,1], got buy=%v sell=%v", domain.ErrInvalidParams, buyThreshold, sellThreshold)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: combined strategy needs at least one member", domain.ErrInvalidParams)
	}
	total := 0.0
	for _, m := range members {
		if m.Weight < 0 {
			return nil, fmt.Errorf("%w: negative weight %v", domain.ErrInvalidParams, m.Weight)
		}
		total += m.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: member weights sum to zero", domain.ErrInvalidParams)
	}
	return &CombinedWeightedSignalStrategy{
		members:       members,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
	}, nil
}

func (c *CombinedWeightedSignalStrategy) Members() []WeightedStrategy {
	return append([]WeightedStrategy{}, c.members...)
}

func (c *CombinedWeightedSignalStrategy) RequiredColumns() []string {
	seen := map[string]bool{}
	for _, m := range c.members {
		for _, col := range m.Strategy.Base().RequiredColumns() {
			seen[col] = true
		}
	}
	out := make([]string, 0, len(seen))
	for col := range seen {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

func (c *CombinedWeightedSignalStrategy) vote(entries, exits []domain.Signal) (domain.Signal, domain.Signal) {
	total, buy, sell := 0.0, 0.0, 0.0
	buyVotes, sellVotes := 0, 0
	for i, m := range c.members {
		total += m.Weight
		if entries[i] == domain.SignalBuy {
			buy += m.Weight
			buyVotes++
		}
		if exits[i] == domain.SignalSell {
			sell += m.Weight
			sellVotes++
		}
	}
	entry, exit := domain.SignalHold, domain.SignalHold
	if buyVotes > 0 && buy/total >= c.buyThreshold-voteEpsilon {
		entry = domain.SignalBuy
	}
	if sellVotes > 0 && sell/total >= c.sellThreshold-voteEpsilon {
		exit = domain.SignalSell
	}
	return entry, exit
}

// GenerateSignals runs every member over the whole frame and votes per row.
func (c *CombinedWeightedSignalStrategy) GenerateSignals(f *domain.Frame) (*domain.SignalFrame, error) {
	frames := make([]*domain.SignalFrame, len(c.members))
	for i, m := range c.members {
		sf, err := m.Strategy.Base().GenerateSignals(f)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signals for member %d: %w", i, err)
		}
		frames[i] = sf
	}
	out := domain.NewSignalFrame(f.Clone())
	entries := make([]domain.Signal, len(frames))
	exits := make([]domain.Signal, len(frames))
	for row := 0; row < f.Len(); row++ {
		for i, sf := range frames {
			entries[i], exits[i] = sf.Entry[row], sf.Exit[row]
		}
		out.Entry[row], out.Exit[row] = c.vote(entries, exits)
	}
	return out, nil
}

// Update feeds one enriched row to every member and returns the vote.
func (c *CombinedWeightedSignalStrategy) Update(row domain.EnrichedBar) (map[string]domain.Signal, error) {
	entries := make([]domain.Signal, len(c.members))
	exits := make([]domain.Signal, len(c.members))
	for i, m := range c.members {
		entry, exit, err := m.Strategy.Update(row)
		if err != nil {
			return nil, err
		}
		entries[i], exits[i] = entry, exit
	}
	entry, exit := c.vote(entries, exits)
	return map[string]domain.Signal{
		domain.ColEntrySignal: entry,
		domain.ColExitSignal:  exit,
	}, nil
}

func (c *CombinedWeightedSignalStrategy) Description() string {
	parts := make([]string, len(c.members))
	for i, m := range c.members {
		parts[i] = "(" + m.Strategy.Base().Description() + ", " + strconv.FormatFloat(m.Weight, 'g', -1, 64) + ")"
	}
	sort.Strings(parts)
	return fmt.Sprintf("CombinedWeightedSignalStrategy(buy_threshold=%s, sell_threshold=%s, strategies=[%s])",
		strconv.FormatFloat(c.buyThreshold, 'g', -1, 64),
		strconv.FormatFloat(c.sellThreshold, 'g', -1, 64),
		strings.Join(parts, ", "),
	)
}

func (c *CombinedWeightedSignalStrategy) HashID() string {
	return HashDescription(c.Description())
}
