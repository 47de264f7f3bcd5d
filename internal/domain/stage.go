package domain

import "fmt"

type Stage string

const (
	StageDataIngest            Stage = "data_ingest"
	StageFeatureEngineering    Stage = "feature_engineering"
	StageSignalOptimization    Stage = "signal_optimization"
	StageSignalTesting         Stage = "signal_testing"
	StagePortfolioOptimization Stage = "portfolio_optimization"
	StagePortfolioTesting      Stage = "portfolio_testing"
	StageEvaluation            Stage = "evaluation"
)

var AllStages = []Stage{
	StageDataIngest,
	StageFeatureEngineering,
	StageSignalOptimization,
	StageSignalTesting,
	StagePortfolioOptimization,
	StagePortfolioTesting,
	StageEvaluation,
}

type StageInfo struct {
	// Predecessor is the stage whose output this stage reads.
	Predecessor Stage
	// RequiredColumns must be present in every page read from the predecessor.
	RequiredColumns []string
	// ColumnRenames maps legacy or upstream column names to canonical ones.
	ColumnRenames map[string]string
}

var stageInfo = map[Stage]StageInfo{
	StageDataIngest: {
		RequiredColumns: BarColumns,
		ColumnRenames: map[string]string{
			"o":           ColOpen,
			"h":           ColHigh,
			"l":           ColLow,
			"c":           ColClose,
			"v":           ColVolume,
			"n":           ColNumTrades,
			"trade_count": ColNumTrades,
			"vw":          ColVwap,
		},
	},
	StageFeatureEngineering: {
		Predecessor:     StageDataIngest,
		RequiredColumns: BarColumns,
		ColumnRenames: map[string]string{
			"trade_count": ColNumTrades,
			"vw":          ColVwap,
		},
	},
	StageSignalOptimization: {
		Predecessor:     StageFeatureEngineering,
		RequiredColumns: []string{ColClose},
	},
	StageSignalTesting: {
		Predecessor:     StageFeatureEngineering,
		RequiredColumns: []string{ColClose},
	},
	StagePortfolioOptimization: {
		Predecessor:     StageFeatureEngineering,
		RequiredColumns: []string{ColClose},
	},
	StagePortfolioTesting: {
		Predecessor:     StageFeatureEngineering,
		RequiredColumns: []string{ColClose},
	},
	StageEvaluation: {
		Predecessor: StageSignalOptimization,
	},
}

func (s Stage) Info() StageInfo {
	return stageInfo[s]
}

func (s Stage) DoneMarker() string {
	return string(s) + ".done.csv"
}

func (s Stage) ErrorMarker() string {
	return string(s) + ".error.csv"
}

func ParseStage(s string) (Stage, error) {
	for _, stage := range AllStages {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}
