package strategy

import (
	"fmt"
	"sort"

	"algotrader/internal/domain"
)

// PositionState is carried across rows by stateful logic.
type PositionState struct {
	InPosition bool
	EntryPrice float64
	BarsHeld   int
}

// StepInput is one row handed to stateful logic after the condition slots
// have been evaluated.
type StepInput struct {
	Close  float64
	Entry  domain.Signal
	Exit   domain.Signal
	Trend  bool
	Filter bool
}

// StatefulLogic reduces the row signals into position aware signals.
type StatefulLogic interface {
	Class() string
	Params() Params
	Description() string
	Step(in StepInput, state *PositionState) (domain.Signal, domain.Signal)
}

type statefulDef struct {
	specs []ParamSpec
	build func(p Params) (StatefulLogic, error)
}

var statefulCatalog = map[string]statefulDef{
	"PositionStateLogic": {
		build: func(p Params) (StatefulLogic, error) {
			return positionStateLogic{}, nil
		},
	},
	"StopLossTakeProfitLogic": {
		specs: []ParamSpec{
			FloatParam("stop_loss_pct", 0.01, 0.2, 0.01, 0.05),
			FloatParam("take_profit_pct", 0.02, 0.5, 0.02, 0.1),
			IntParam("max_hold_bars", 0, 60, 0),
		},
		build: func(p Params) (StatefulLogic, error) {
			stopLoss, err := p.Float("stop_loss_pct")
			if err != nil {
				return nil, err
			}
			takeProfit, err := p.Float("take_profit_pct")
			if err != nil {
				return nil, err
			}
			maxHold, err := p.Int("max_hold_bars")
			if err != nil {
				return nil, err
			}
			if stopLoss < 0 || takeProfit < 0 || maxHold < 0 {
				return nil, fmt.Errorf("%w: stop loss, take profit and max hold must be >= 0", domain.ErrInvalidParams)
			}
			return stopLossTakeProfitLogic{params: p, stopLoss: stopLoss, takeProfit: takeProfit, maxHold: maxHold}, nil
		},
	},
}

func NewStatefulLogic(class string, params Params) (StatefulLogic, error) {
	def, ok := statefulCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: stateful logic %s", domain.ErrUnknownStrategy, class)
	}
	resolved, err := resolveParams(class, def.specs, params)
	if err != nil {
		return nil, err
	}
	return def.build(resolved)
}

func StatefulSpecs(class string) ([]ParamSpec, error) {
	def, ok := statefulCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: stateful logic %s", domain.ErrUnknownStrategy, class)
	}
	return def.specs, nil
}

func StatefulClasses() []string {
	out := make([]string, 0, len(statefulCatalog))
	for class := range statefulCatalog {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// positionStateLogic only buys when flat and only sells when long.
type positionStateLogic struct{}

func (positionStateLogic) Class() string {
	return "PositionStateLogic"
}

func (positionStateLogic) Params() Params {
	return Params{}
}

func (l positionStateLogic) Description() string {
	return describe(l.Class(), Params{})
}

func (positionStateLogic) Step(in StepInput, state *PositionState) (domain.Signal, domain.Signal) {
	return stepPosition(in, state, false)
}

func stepPosition(in StepInput, state *PositionState, forceExit bool) (domain.Signal, domain.Signal) {
	if state.InPosition {
		state.BarsHeld++
		if forceExit || in.Exit == domain.SignalSell {
			*state = PositionState{}
			return domain.SignalHold, domain.SignalSell
		}
		return domain.SignalHold, domain.SignalHold
	}
	if in.Entry == domain.SignalBuy {
		*state = PositionState{InPosition: true, EntryPrice: in.Close}
		return domain.SignalBuy, domain.SignalHold
	}
	return domain.SignalHold, domain.SignalHold
}

// stopLossTakeProfitLogic adds forced exits on top of position tracking.
type stopLossTakeProfitLogic struct {
	params     Params
	stopLoss   float64
	takeProfit float64
	maxHold    int
}

func (stopLossTakeProfitLogic) Class() string {
	return "StopLossTakeProfitLogic"
}

func (l stopLossTakeProfitLogic) Params() Params {
	out := Params{}
	for k, v := range l.params {
		out[k] = v
	}
	return out
}

func (l stopLossTakeProfitLogic) Description() string {
	return describe(l.Class(), l.params)
}

func (l stopLossTakeProfitLogic) Step(in StepInput, state *PositionState) (domain.Signal, domain.Signal) {
	force := false
	if state.InPosition && state.EntryPrice > 0 {
		change := in.Close/state.EntryPrice - 1
		switch {
		case l.stopLoss > 0 && change <= -l.stopLoss:
			force = true
		case l.takeProfit > 0 && change >= l.takeProfit:
			force = true
		case l.maxHold > 0 && state.BarsHeld+1 >= l.maxHold:
			force = true
		}
	}
	return stepPosition(in, state, force)
}
