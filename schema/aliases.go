package schema

// aliasDictionary словарь алиасов для каждого канонического типа.
// Алиасы хранятся в нормализованном виде (нижний регистр, подчеркивания)
var aliasDictionary = map[CanonicalType][]string{
	Date: {
		"date", "dt", "day", "order_date", "txn_date", "txn_dt", "transaction_date",
		"sale_date", "sales_date", "invoice_date", "created", "created_at",
		"timestamp", "period", "month", "fecha", "datum",
	},
	Sales: {
		"sales", "sale", "revenue", "sales_amt", "sales_amount", "sales_total",
		"gross_sales", "net_sales", "turnover", "income",
	},
	Amount: {
		"amount", "amt", "total", "sum", "value", "price", "cost", "total_amount",
		"order_total", "payment", "paid",
	},
	Product: {
		"product", "prod", "item", "sku", "prod_sku", "product_name", "item_name",
		"product_id", "article", "goods", "merchandise", "model",
	},
	Quantity: {
		"quantity", "qty", "count", "units", "pieces", "pcs", "volume",
		"order_qty", "items_sold", "num_items",
	},
	Region: {
		"region", "area", "territory", "state", "province", "city", "country",
		"location", "zone", "district", "market",
	},
	Customer: {
		"customer", "client", "buyer", "account", "customer_name", "client_name",
		"customer_id", "client_id", "purchaser", "shopper",
	},
	TransactionID: {
		"transaction_id", "txn_id", "trans_id", "order_id", "order_no",
		"order_number", "invoice_id", "invoice_no", "receipt_id", "reference",
		"ref_no", "id",
	},
}

// AliasesFor возвращает набор алиасов для канонического типа
func AliasesFor(t CanonicalType) []string {
	aliases, ok := aliasDictionary[t]
	if !ok {
		return nil
	}
	result := make([]string, len(aliases))
	copy(result, aliases)
	return result
}

// AliasDictionary возвращает копию всего словаря алиасов
func AliasDictionary() map[CanonicalType][]string {
	result := make(map[CanonicalType][]string, len(aliasDictionary))
	for t, aliases := range aliasDictionary {
		copied := make([]string, len(aliases))
		copy(copied, aliases)
		result[t] = copied
	}
	return result
}
