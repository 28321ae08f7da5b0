package feedback

import (
	"fmt"
	"log"
	"math"
	"sort"

	"schemamapper/knowledge"
)

// Analyzer строит метрики качества по журналу обратной связи базы знаний.
// Предложения порогов требуют явного принятия через Adopt
type Analyzer struct {
	config *Config
	kb     *knowledge.KnowledgeBase
}

// NewAnalyzer создает анализатор обратной связи
func NewAnalyzer(config *Config, kb *knowledge.KnowledgeBase) (*Analyzer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback config: %w", err)
	}
	if kb == nil {
		return nil, fmt.Errorf("knowledge base is required")
	}

	return &Analyzer{config: config, kb: kb}, nil
}

// BuildReport строит сводный отчет по накопленным событиям.
// currentWeights текущие нормализованные веса методов анализа по именам
// методов; при nil предложения весов не формируются
func (a *Analyzer) BuildReport(currentAutoMap, currentSuggestedMin float64, currentWeights map[string]float64) (*Report, error) {
	events, err := a.kb.FeedbackEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback events: %w", err)
	}

	report := &Report{
		ByMethod:    methodAccuracy(events),
		Calibration: a.calibrate(events),
		SampleSize:  len(events),
	}

	accepted := 0
	for _, e := range events {
		if e.Accepted {
			accepted++
		}
	}
	if len(events) > 0 {
		report.OverallAccuracy = float64(accepted) / float64(len(events))
	}

	report.Proposals = a.proposeThresholds(events, currentAutoMap, currentSuggestedMin)
	if len(events) >= a.config.MinSampleSize {
		report.Proposals = append(report.Proposals, a.proposeWeights(report.ByMethod, currentWeights)...)
	}
	return report, nil
}

// Adopt принимает предложение: значение становится активным в базе знаний
func (a *Analyzer) Adopt(p Proposal) error {
	if err := a.kb.AdoptThreshold(p.Name, p.Proposed); err != nil {
		return err
	}
	log.Printf("[Feedback] Proposal adopted: %s %.2f -> %.2f", p.Name, p.Current, p.Proposed)
	return nil
}

// methodAccuracy считает точность каждого метода анализа
func methodAccuracy(events []knowledge.FeedbackEvent) []MethodAccuracy {
	byMethod := make(map[string]*MethodAccuracy)
	for _, e := range events {
		acc, ok := byMethod[e.Method]
		if !ok {
			acc = &MethodAccuracy{Method: e.Method}
			byMethod[e.Method] = acc
		}
		acc.Total++
		if e.Accepted {
			acc.Accepted++
		}
	}

	result := make([]MethodAccuracy, 0, len(byMethod))
	for _, acc := range byMethod {
		acc.Accuracy = float64(acc.Accepted) / float64(acc.Total)
		result = append(result, *acc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Method < result[j].Method })
	return result
}

// calibrate строит калибровочную гистограмму: насколько заявленные уверенности
// соответствуют фактической доле принятых предсказаний
func (a *Analyzer) calibrate(events []knowledge.FeedbackEvent) CalibrationReport {
	bins := make([]CalibrationBin, a.config.CalibrationBins)
	width := 1.0 / float64(a.config.CalibrationBins)
	for i := range bins {
		bins[i].Low = float64(i) * width
		bins[i].High = bins[i].Low + width
	}

	confidenceSums := make([]float64, len(bins))
	acceptCounts := make([]int, len(bins))

	for _, e := range events {
		idx := int(e.Confidence / width)
		if idx >= len(bins) {
			idx = len(bins) - 1
		}
		bins[idx].Count++
		confidenceSums[idx] += e.Confidence
		if e.Accepted {
			acceptCounts[idx]++
		}
	}

	var weightedError float64
	for i := range bins {
		if bins[i].Count == 0 {
			continue
		}
		bins[i].AvgConfidence = confidenceSums[i] / float64(bins[i].Count)
		bins[i].AcceptRate = float64(acceptCounts[i]) / float64(bins[i].Count)
		bins[i].Gap = bins[i].AvgConfidence - bins[i].AcceptRate
		weightedError += math.Abs(bins[i].Gap) * float64(bins[i].Count)
	}

	report := CalibrationReport{Bins: bins, SampleSize: len(events)}
	if len(events) > 0 {
		report.ExpectedError = weightedError / float64(len(events))
	}
	report.Quality = 1.0 - report.ExpectedError
	return report
}

// proposeThresholds формирует предложения порогов по фактической точности полос.
// При недостаточной выборке предложений нет
func (a *Analyzer) proposeThresholds(events []knowledge.FeedbackEvent, currentAutoMap, currentSuggestedMin float64) []Proposal {
	if len(events) < a.config.MinSampleSize {
		return nil
	}

	var proposals []Proposal

	// Полоса авто-применения: точность ниже целевой означает, что порог
	// пропускает слишком слабые маппинги; точность выше порога ослабления
	// позволяет опустить границу и авто-применять больше
	autoTotal, autoAccepted := bandStats(events, currentAutoMap, 1.01)
	if autoTotal > 0 {
		autoAccuracy := float64(autoAccepted) / float64(autoTotal)
		switch {
		case autoAccuracy < a.config.AutoMapTargetAccuracy:
			proposed := clampThreshold(currentAutoMap + a.config.ThresholdStep)
			proposals = append(proposals, Proposal{
				Name:     ThresholdAutoMap,
				Current:  currentAutoMap,
				Proposed: proposed,
				Rationale: fmt.Sprintf("auto-map band accuracy %.2f below target %.2f over %d events",
					autoAccuracy, a.config.AutoMapTargetAccuracy, autoTotal),
			})
		case autoAccuracy >= a.config.RelaxationAccuracy:
			proposed := clampThreshold(currentAutoMap - a.config.ThresholdStep)
			if proposed > currentSuggestedMin {
				proposals = append(proposals, Proposal{
					Name:     ThresholdAutoMap,
					Current:  currentAutoMap,
					Proposed: proposed,
					Rationale: fmt.Sprintf("auto-map band accuracy %.2f over %d events allows a lower bound",
						autoAccuracy, autoTotal),
				})
			}
		}
	}

	// Полоса предложений: почти идеальная точность означает, что нижняя
	// граница может быть опущена без потери качества
	suggestedTotal, suggestedAccepted := bandStats(events, currentSuggestedMin, currentAutoMap)
	if suggestedTotal > 0 {
		suggestedAccuracy := float64(suggestedAccepted) / float64(suggestedTotal)
		if suggestedAccuracy >= a.config.AutoMapTargetAccuracy {
			proposed := clampThreshold(currentSuggestedMin - a.config.ThresholdStep)
			proposals = append(proposals, Proposal{
				Name:     ThresholdSuggestedMin,
				Current:  currentSuggestedMin,
				Proposed: proposed,
				Rationale: fmt.Sprintf("suggested band accuracy %.2f over %d events allows a lower bound",
					suggestedAccuracy, suggestedTotal),
			})
		}
	}

	return proposals
}

// proposeWeights формирует рекомендательные предложения весов методов анализа:
// вес каждого метода масштабируется его фактической точностью, затем веса
// нормализуются обратно к единичной сумме. Метод без событий сохраняет
// текущий вес
func (a *Analyzer) proposeWeights(byMethod []MethodAccuracy, currentWeights map[string]float64) []Proposal {
	if len(currentWeights) == 0 {
		return nil
	}

	accuracy := make(map[string]float64, len(byMethod))
	for _, m := range byMethod {
		accuracy[m.Method] = m.Accuracy
	}

	// Нулевая точность не обнуляет вес: метод остается в смеси
	const accuracyFloor = 0.05

	scaled := make(map[string]float64, len(currentWeights))
	var sum float64
	for method, weight := range currentWeights {
		acc, ok := accuracy[method]
		if !ok {
			scaled[method] = weight
		} else {
			scaled[method] = weight * math.Max(acc, accuracyFloor)
		}
		sum += scaled[method]
	}
	if sum <= 0 {
		return nil
	}

	methods := make([]string, 0, len(currentWeights))
	for method := range currentWeights {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	var proposals []Proposal
	for _, method := range methods {
		current := currentWeights[method]
		proposed := scaled[method] / sum
		if math.Abs(proposed-current) < a.config.MinWeightDelta {
			continue
		}
		proposals = append(proposals, Proposal{
			Name:     WeightProposalName(method),
			Current:  current,
			Proposed: proposed,
			Rationale: fmt.Sprintf("method %s accuracy %.2f suggests weight %.2f instead of %.2f",
				method, accuracy[method], proposed, current),
		})
	}
	return proposals
}

// bandStats считает события и принятые предсказания в полосе [low, high)
func bandStats(events []knowledge.FeedbackEvent, low, high float64) (total, accepted int) {
	for _, e := range events {
		if e.Confidence < low || e.Confidence >= high {
			continue
		}
		total++
		if e.Accepted {
			accepted++
		}
	}
	return total, accepted
}

func clampThreshold(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
