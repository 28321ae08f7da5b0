package schema

// Requirement требование аналитического продукта к одному каноническому типу.
// Требование выполнено, если доступен основной тип или один из альтернативных
type Requirement struct {
	Required     CanonicalType   `json:"required"`
	Alternatives []CanonicalType `json:"alternatives,omitempty"`
}

// AnalyticProduct аналитический продукт (отчет/прогноз) и его требования к схеме
type AnalyticProduct struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Requirements []Requirement `json:"requirements"`
}

// analyticProducts реестр аналитических продуктов
var analyticProducts = []AnalyticProduct{
	{
		Name:        "Sales Summary",
		Description: "Descriptive statistics of sales over time",
		Requirements: []Requirement{
			{Required: Date},
			{Required: Sales, Alternatives: []CanonicalType{Amount}},
		},
	},
	{
		Name:        "Sales Forecast",
		Description: "Time-series forecast of future sales",
		Requirements: []Requirement{
			{Required: Date},
			{Required: Sales, Alternatives: []CanonicalType{Amount}},
		},
	},
	{
		Name:        "Product Performance",
		Description: "Per-product sales and quantity breakdown",
		Requirements: []Requirement{
			{Required: Product},
			{Required: Sales, Alternatives: []CanonicalType{Amount, Quantity}},
		},
	},
	{
		Name:        "Regional Sales",
		Description: "Sales split by geographic region",
		Requirements: []Requirement{
			{Required: Region},
			{Required: Sales, Alternatives: []CanonicalType{Amount}},
		},
	},
	{
		Name:        "Customer Analysis",
		Description: "Customer-level purchasing behavior",
		Requirements: []Requirement{
			{Required: Customer},
			{Required: Sales, Alternatives: []CanonicalType{Amount}},
		},
	},
	{
		Name:        "Transaction Analysis",
		Description: "Transaction-level detail and audit",
		Requirements: []Requirement{
			{Required: TransactionID},
			{Required: Amount, Alternatives: []CanonicalType{Sales}},
		},
	},
}

// Products возвращает реестр аналитических продуктов
func Products() []AnalyticProduct {
	result := make([]AnalyticProduct, len(analyticProducts))
	copy(result, analyticProducts)
	return result
}

// ProductByName возвращает аналитический продукт по имени
func ProductByName(name string) (AnalyticProduct, bool) {
	for _, p := range analyticProducts {
		if p.Name == name {
			return p, true
		}
	}
	return AnalyticProduct{}, false
}

// Feasible проверяет выполнимость продукта на наборе доступных канонических типов.
// Каждое требование закрывается основным типом или одной из альтернатив
func (p AnalyticProduct) Feasible(available map[CanonicalType]bool) bool {
	for _, req := range p.Requirements {
		if available[req.Required] {
			continue
		}
		satisfied := false
		for _, alt := range req.Alternatives {
			if available[alt] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// EnabledBy возвращает true, если канонический тип участвует в требованиях продукта
// (как основной или как альтернатива)
func (p AnalyticProduct) EnabledBy(t CanonicalType) bool {
	for _, req := range p.Requirements {
		if req.Required == t {
			return true
		}
		for _, alt := range req.Alternatives {
			if alt == t {
				return true
			}
		}
	}
	return false
}

// IsCritical возвращает true, если канонический тип требуется хотя бы одному
// аналитическому продукту
func IsCritical(t CanonicalType) bool {
	if t == Ignore {
		return false
	}
	for _, p := range analyticProducts {
		if p.EnabledBy(t) {
			return true
		}
	}
	return false
}

// FeasibleProducts возвращает имена продуктов, выполнимых на наборе типов
func FeasibleProducts(available map[CanonicalType]bool) []string {
	var result []string
	for _, p := range analyticProducts {
		if p.Feasible(available) {
			result = append(result, p.Name)
		}
	}
	return result
}

// EnabledProducts возвращает имена продуктов, в которых участвует данный тип
func EnabledProducts(t CanonicalType) []string {
	var result []string
	if t == Ignore {
		return result
	}
	for _, p := range analyticProducts {
		if p.EnabledBy(t) {
			result = append(result, p.Name)
		}
	}
	return result
}
