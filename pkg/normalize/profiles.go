package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Realtime quotes: data is a list of quote objects.
var quotecColumns = []Column{
	colRaw("symbol", "symbol"),
	colRound("current", "current"),
	colPercent("percent", "percent"),
	colRound("chg", "chg"),
	colRound("open", "open"),
	colRound("high", "high"),
	colRound("low", "low"),
	colRound("last_close", "last_close"),
	colScaled("volume", "volume", ScaleWan),
	colScaled("amount", "amount", ScaleYi),
	colPercent("turnover_rate", "turnover_rate"),
	colScaled("market_capital", "market_capital", ScaleYi),
	colDatetime("timestamp", "timestamp"),
}

func quotec(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	if !data.IsArray() {
		return nil, false
	}
	return buildTable(data.Array(), quotecColumns, loc), true
}

var quoteDetailColumns = []Column{
	colRaw("symbol", "quote.symbol"),
	colRaw("name", "quote.name"),
	colRaw("exchange", "quote.exchange"),
	colRaw("currency", "quote.currency"),
	colRaw("status", "market.status"),
	colRound("current", "quote.current"),
	colPercent("percent", "quote.percent"),
	colRound("chg", "quote.chg"),
	colRound("open", "quote.open"),
	colRound("high", "quote.high"),
	colRound("low", "quote.low"),
	colRound("last_close", "quote.last_close"),
	colRound("high52w", "quote.high52w"),
	colRound("low52w", "quote.low52w"),
	colScaled("volume", "quote.volume", ScaleAuto),
	colScaled("amount", "quote.amount", ScaleAuto),
	colPercent("turnover_rate", "quote.turnover_rate"),
	colPercent("amplitude", "quote.amplitude"),
	colScaled("market_capital", "quote.market_capital", ScaleAuto),
	colScaled("float_market_capital", "quote.float_market_capital", ScaleAuto),
	colRound("pe_ttm", "quote.pe_ttm"),
	colRound("pe_lyr", "quote.pe_lyr"),
	colRound("pb", "quote.pb"),
	colPercent("dividend_yield", "quote.dividend_yield"),
	colRound("eps", "quote.eps"),
	colRound("navps", "quote.navps"),
	colDatetime("timestamp", "quote.timestamp"),
}

func quoteDetail(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	if !data.Get("quote").IsObject() {
		return nil, false
	}
	return buildRecord(data, quoteDetailColumns, loc), true
}

var pankouLevelColumns = []Column{
	colRaw("level", "level"),
	colRound("bid_price", "bp"),
	colRaw("bid_volume", "bc"),
	colRound("ask_price", "sp"),
	colRaw("ask_volume", "sc"),
}

// pankou flattens the five bid/ask levels (bp1..bp5, bc1..bc5, sp1.., sc1..)
// into a table, one row per level.
func pankou(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	if !data.IsObject() {
		return nil, false
	}

	levels := make([]gjson.Result, 0, 5)
	for i := 1; i <= 5; i++ {
		n := strconv.Itoa(i)
		row := `{"level":` + n +
			`,"bp":` + rawOrNull(data.Get("bp"+n)) +
			`,"bc":` + rawOrNull(data.Get("bc"+n)) +
			`,"sp":` + rawOrNull(data.Get("sp"+n)) +
			`,"sc":` + rawOrNull(data.Get("sc"+n)) + `}`
		levels = append(levels, gjson.Parse(row))
	}

	return map[string]any{
		"symbol":    value(data.Get("symbol")),
		"current":   colRound("current", "").extract(data.Get("current"), ScaleRaw, loc),
		"timestamp": colDatetime("timestamp", "").extract(data.Get("timestamp"), ScaleRaw, loc),
		"buypct":    colPercent("buypct", "").extract(data.Get("buypct"), ScaleRaw, loc),
		"sellpct":   colPercent("sellpct", "").extract(data.Get("sellpct"), ScaleRaw, loc),
		"levels":    buildTable(levels, pankouLevelColumns, loc),
	}, true
}

// Kline rows are positional; data.column names each index.
var klineColumns = []Column{
	colDatetime("timestamp", "timestamp"),
	colRound("open", "open"),
	colRound("high", "high"),
	colRound("low", "low"),
	colRound("close", "close"),
	colRound("chg", "chg"),
	colPercent("percent", "percent"),
	colScaled("volume", "volume", ScaleWan),
	colScaled("amount", "amount", ScaleYi),
	colPercent("turnoverrate", "turnoverrate"),
}

func kline(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	names := data.Get("column")
	items := data.Get("item")
	if !names.IsArray() || !items.IsArray() {
		return nil, false
	}

	index := make(map[string]int)
	for i, n := range names.Array() {
		index[n.String()] = i
	}

	cols := make([]Column, len(klineColumns))
	for i, c := range klineColumns {
		cols[i] = c
		if idx, ok := index[c.Path]; ok {
			cols[i].Path = strconv.Itoa(idx)
		} else {
			cols[i].Path = "missing"
		}
	}

	out := buildTable(items.Array(), cols, loc)
	if dailyBars(out) {
		for _, row := range out.Data {
			if s, ok := row[0].(string); ok {
				row[0] = s[:10]
			}
		}
	}
	return out, true
}

// dailyBars reports whether every bar opens at midnight, in which case the
// time of day carries no information.
func dailyBars(t Table) bool {
	for _, row := range t.Data {
		s, ok := row[0].(string)
		if !ok || len(s) != len(TimeLayout) || !strings.HasSuffix(s, " 00:00:00") {
			return false
		}
	}
	return true
}

var capitalFlowColumns = []Column{
	colTime("time", "timestamp"),
	colScaled("amount", "amount", ScaleWan),
}

func capitalFlow(doc gjson.Result, loc *time.Location) (any, bool) {
	items := doc.Get("data.items")
	if !items.IsArray() {
		return nil, false
	}
	return buildTable(items.Array(), capitalFlowColumns, loc), true
}

var capitalHistoryColumns = []Column{
	colDate("date", "timestamp"),
	colScaled("amount", "amount", ScaleWan),
}

var capitalHistorySums = []Column{
	colScaled("sum3", "sum3", ScaleAuto),
	colScaled("sum5", "sum5", ScaleAuto),
	colScaled("sum10", "sum10", ScaleAuto),
	colScaled("sum20", "sum20", ScaleAuto),
}

func capitalHistory(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	items := data.Get("items")
	if !items.IsArray() {
		return nil, false
	}
	out := buildRecord(data, capitalHistorySums, loc)
	out["items"] = buildTable(items.Array(), capitalHistoryColumns, loc)
	return out, true
}

// Financial statements: every metric is a [value, yoy] pair.
var incomeColumns = []Column{
	colRaw("report_name", "report_name"),
	colDate("report_date", "report_date"),
	colScaled("total_revenue", "total_revenue.0", ScaleYi),
	colRatio("total_revenue_yoy", "total_revenue.1"),
	colScaled("op", "op.0", ScaleYi),
	colScaled("net_profit", "net_profit.0", ScaleYi),
	colRatio("net_profit_yoy", "net_profit.1"),
	colScaled("net_profit_atsopc", "net_profit_atsopc.0", ScaleYi),
	colRound("basic_eps", "basic_eps.0"),
}

var balanceColumns = []Column{
	colRaw("report_name", "report_name"),
	colDate("report_date", "report_date"),
	colScaled("total_assets", "total_assets.0", ScaleYi),
	colRatio("total_assets_yoy", "total_assets.1"),
	colScaled("total_liab", "total_liab.0", ScaleYi),
	colScaled("total_quity_atsopc", "total_quity_atsopc.0", ScaleYi),
	colScaled("currency_funds", "currency_funds.0", ScaleYi),
	colPercent("asset_liab_ratio", "asset_liab_ratio.0"),
}

var cashFlowColumns = []Column{
	colRaw("report_name", "report_name"),
	colDate("report_date", "report_date"),
	colScaled("ncf_from_oa", "ncf_from_oa.0", ScaleYi),
	colScaled("ncf_from_ia", "ncf_from_ia.0", ScaleYi),
	colScaled("ncf_from_fa", "ncf_from_fa.0", ScaleYi),
	colScaled("cash_received_of_sales_service", "cash_received_of_sales_service.0", ScaleYi),
}

var indicatorColumns = []Column{
	colRaw("report_name", "report_name"),
	colDate("report_date", "report_date"),
	colPercent("avg_roe", "avg_roe.0"),
	colRound("basic_eps", "basic_eps.0"),
	colRound("np_per_share", "np_per_share.0"),
	colRound("operate_cash_flow_ps", "operate_cash_flow_ps.0"),
	colPercent("gross_selling_rate", "gross_selling_rate.0"),
	colPercent("net_selling_rate", "net_selling_rate.0"),
	colPercent("asset_liab_ratio", "asset_liab_ratio.0"),
	colScaled("total_revenue", "total_revenue.0", ScaleYi),
	colPercent("operating_income_yoy", "operating_income_yoy.0"),
	colScaled("net_profit_atsopc", "net_profit_atsopc.0", ScaleYi),
	colPercent("net_profit_atsopc_yoy", "net_profit_atsopc_yoy.0"),
}

func statement(cols []Column) profileFunc {
	return func(doc gjson.Result, loc *time.Location) (any, bool) {
		list := doc.Get("data.list")
		if !list.IsArray() {
			return nil, false
		}
		return buildTable(list.Array(), cols, loc), true
	}
}

var (
	income    = statement(incomeColumns)
	balance   = statement(balanceColumns)
	cashFlow  = statement(cashFlowColumns)
	indicator = statement(indicatorColumns)
)

var topHoldersColumns = []Column{
	colRaw("holder_name", "holder_name"),
	colScaled("held_num", "held_num", ScaleWan),
	colPercent("held_ratio", "held_ratio"),
	colRaw("chg", "chg"),
}

func topHolders(doc gjson.Result, loc *time.Location) (any, bool) {
	items := doc.Get("data.items")
	if !items.IsArray() {
		return nil, false
	}
	return buildTable(items.Array(), topHoldersColumns, loc), true
}

var fundNavColumns = []Column{
	colRaw("date", "date"),
	colRound("nav", "nav"),
	colRound("value", "value"),
	colPercent("percentage", "percentage"),
}

func fundNavHistory(doc gjson.Result, loc *time.Location) (any, bool) {
	items := doc.Get("data.items")
	if !items.IsArray() {
		return nil, false
	}
	return buildTable(items.Array(), fundNavColumns, loc), true
}

var suggestColumns = []Column{
	colRaw("code", "code"),
	colRaw("label", "label"),
	colRaw("stock_type", "stock_type"),
}

func suggestStock(doc gjson.Result, loc *time.Location) (any, bool) {
	data := doc.Get("data")
	if !data.IsArray() {
		return nil, false
	}
	return buildTable(data.Array(), suggestColumns, loc), true
}

func rawOrNull(v gjson.Result) string {
	if !v.Exists() || v.Raw == "" {
		return "null"
	}
	return v.Raw
}

func value(v gjson.Result) any {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	return v.Value()
}
