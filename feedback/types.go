package feedback

import "fmt"

// Имена порогов и весов, по которым формируются предложения
const (
	ThresholdAutoMap      = "auto_map_threshold"
	ThresholdSuggestedMin = "suggested_min"

	// Суффикс имени предложения веса метода: "<method>_weight"
	weightNameSuffix = "_weight"
)

// WeightProposalName возвращает имя предложения веса для метода анализа
func WeightProposalName(method string) string {
	return method + weightNameSuffix
}

// Config конфигурация анализатора обратной связи
type Config struct {
	// Число бинов калибровочной гистограммы
	CalibrationBins int `json:"calibration_bins"`

	// Минимум событий, при котором предложения считаются обоснованными
	MinSampleSize int `json:"min_sample_size"`

	// Целевая точность авто-применяемых маппингов
	AutoMapTargetAccuracy float64 `json:"auto_map_target_accuracy"`

	// Точность полосы авто-применения, при которой порог можно опустить
	RelaxationAccuracy float64 `json:"relaxation_accuracy"`

	// Шаг изменения порога в одном предложении
	ThresholdStep float64 `json:"threshold_step"`

	// Минимальное изменение веса, при котором предложение имеет смысл
	MinWeightDelta float64 `json:"min_weight_delta"`
}

// DefaultConfig возвращает конфигурацию анализатора обратной связи по умолчанию
func DefaultConfig() *Config {
	return &Config{
		CalibrationBins:       10,
		MinSampleSize:         30,
		AutoMapTargetAccuracy: 0.95,
		RelaxationAccuracy:    0.99,
		ThresholdStep:         0.02,
		MinWeightDelta:        0.01,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.CalibrationBins < 2 {
		return fmt.Errorf("calibration bins must be at least 2, got %d", c.CalibrationBins)
	}
	if c.MinSampleSize < 1 {
		return fmt.Errorf("min sample size must be at least 1, got %d", c.MinSampleSize)
	}
	if c.AutoMapTargetAccuracy <= 0 || c.AutoMapTargetAccuracy > 1 {
		return fmt.Errorf("auto map target accuracy must be within (0,1], got %v", c.AutoMapTargetAccuracy)
	}
	if c.RelaxationAccuracy < c.AutoMapTargetAccuracy || c.RelaxationAccuracy > 1 {
		return fmt.Errorf("relaxation accuracy must be within [target,1], got %v", c.RelaxationAccuracy)
	}
	if c.ThresholdStep <= 0 || c.ThresholdStep > 0.1 {
		return fmt.Errorf("threshold step must be within (0,0.1], got %v", c.ThresholdStep)
	}
	if c.MinWeightDelta <= 0 || c.MinWeightDelta > 0.1 {
		return fmt.Errorf("min weight delta must be within (0,0.1], got %v", c.MinWeightDelta)
	}
	return nil
}

// MethodAccuracy точность одного метода анализа по журналу обратной связи
type MethodAccuracy struct {
	Method   string  `json:"method"`
	Total    int     `json:"total"`
	Accepted int     `json:"accepted"`
	Accuracy float64 `json:"accuracy"`
}

// CalibrationBin один бин калибровочной гистограммы
type CalibrationBin struct {
	Low           float64 `json:"low"`
	High          float64 `json:"high"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	AcceptRate    float64 `json:"accept_rate"`
	// Разрыв между заявленной уверенностью и фактической точностью
	Gap float64 `json:"gap"`
}

// CalibrationReport итог калибровочного анализа.
// Quality = 1 - средневзвешенная ошибка калибровки, в [0,1]: чем выше, тем
// лучше уверенности предсказывают фактическую точность
type CalibrationReport struct {
	Bins          []CalibrationBin `json:"bins"`
	ExpectedError float64          `json:"expected_error"`
	Quality       float64          `json:"quality"`
	SampleSize    int              `json:"sample_size"`
}

// Proposal предложение изменить порог или вес.
// Предложение не применяется автоматически: принятие всегда явное
type Proposal struct {
	Name      string  `json:"name"`
	Current   float64 `json:"current"`
	Proposed  float64 `json:"proposed"`
	Rationale string  `json:"rationale"`
}

// Report сводный отчет обратной связи
type Report struct {
	OverallAccuracy float64           `json:"overall_accuracy"`
	ByMethod        []MethodAccuracy  `json:"by_method"`
	Calibration     CalibrationReport `json:"calibration"`
	Proposals       []Proposal        `json:"proposals"`
	SampleSize      int               `json:"sample_size"`
}
