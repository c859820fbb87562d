package snowball

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
)

var (
	// ErrUnknownOperation is returned for names outside the catalog.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrMissingParam is returned when a required argument has no value.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrUnknownParam is returned for arguments an operation does not accept.
	ErrUnknownParam = errors.New("unknown parameter")
)

// Host selects which upstream site serves an operation.
type Host string

const (
	HostStock   Host = "stock"   // stock.xueqiu.com
	HostWeb     Host = "web"     // xueqiu.com
	HostFund    Host = "fund"    // danjuanfunds.com
	HostCSIndex Host = "csindex" // www.csindex.com.cn
	HostBond    Host = "bond"    // datacenter-web.eastmoney.com
	HostHKEX    Host = "hkex"    // www3.hkexnews.hk
)

// DefaultBaseURLs maps each host to its production base URL.
var DefaultBaseURLs = map[Host]string{
	HostStock:   "https://stock.xueqiu.com",
	HostWeb:     "https://xueqiu.com",
	HostFund:    "https://danjuanfunds.com",
	HostCSIndex: "https://www.csindex.com.cn",
	HostBond:    "https://datacenter-web.eastmoney.com",
	HostHKEX:    "https://www3.hkexnews.hk",
}

// Param is one caller-facing argument.
type Param struct {
	Name     string
	Query    string // upstream query key; "" means Name, "-" means path only
	Default  string
	Required bool
}

// Spec describes one upstream operation.
type Spec struct {
	Name        string
	Description string
	Host        Host
	Path        string // may contain {param} placeholders
	Fixed       url.Values
	Params      []Param
	Profile     normalize.Profile

	// query adds computed query values; optional.
	query func(args url.Values, now time.Time) url.Values
}

const defaultSymbol = "SZ000002"

func stockCode(query string) Param {
	return Param{Name: "stock_code", Query: query, Default: defaultSymbol}
}

func fixed(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

// annualType maps is_annals=1 to the Q4 report filter.
func annualType(args url.Values, _ time.Time) url.Values {
	t := "all"
	if args.Get("is_annals") == "1" {
		t = "Q4"
	}
	return url.Values{"type": []string{t}}
}

func statementSpec(name, desc, path string, profile normalize.Profile) Spec {
	return Spec{
		Name:        name,
		Description: desc,
		Host:        HostStock,
		Path:        path,
		Fixed:       fixed("is_detail", "true"),
		Params: []Param{
			stockCode("symbol"),
			{Name: "is_annals", Query: "-", Default: "1"},
			{Name: "count", Default: "5"},
		},
		Profile: profile,
		query:   annualType,
	}
}

func fundSpec(name, desc, path string, profile normalize.Profile, extra ...Param) Spec {
	return Spec{
		Name:        name,
		Description: desc,
		Host:        HostFund,
		Path:        path,
		Params:      append([]Param{{Name: "fund_code", Query: "-", Required: true}}, extra...),
		Profile:     profile,
	}
}

func indexPerfSpec(days int) Spec {
	return Spec{
		Name:        fmt.Sprintf("index_perf_%d", days),
		Description: fmt.Sprintf("指数最近%d天的表现", days),
		Host:        HostCSIndex,
		Path:        "/csindex-home/perf/index-perf",
		Params:      []Param{{Name: "index_code", Query: "indexCode", Default: "000300"}},
		query: func(_ url.Values, now time.Time) url.Values {
			return url.Values{
				"startDate": []string{now.AddDate(0, 0, -days).Format("20060102")},
				"endDate":   []string{now.Format("20060102")},
			}
		},
	}
}

// northboundSpec queries HKEX Stock Connect holdings for one market.
// The date defaults to the client's current day.
func northboundSpec(market, desc string) Spec {
	return Spec{
		Name:        "northbound_shareholding_" + market,
		Description: desc,
		Host:        HostHKEX,
		Path:        "/sdw/search/mutualmarket_c.aspx",
		Fixed:       fixed("t", market),
		Params:      []Param{{Name: "date", Query: "-"}},
		query: func(args url.Values, now time.Time) url.Values {
			date := args.Get("date")
			if date == "" {
				date = now.Format("2006/01/02")
			}
			return url.Values{"txtShareholdingDate": []string{date}}
		},
	}
}

var catalog = map[string]Spec{}

func init() {
	specs := []Spec{
		{
			Name: "quotec", Description: "实时行情", Host: HostStock,
			Path: "/v5/stock/realtime/quotec.json", Params: []Param{stockCode("symbol")},
			Profile: normalize.ProfileQuotec,
		},
		{
			Name: "quote_detail", Description: "行情详情", Host: HostStock,
			Path: "/v5/stock/quote.json", Fixed: fixed("extend", "detail"), Params: []Param{stockCode("symbol")},
			Profile: normalize.ProfileQuoteDetail,
		},
		{
			Name: "pankou", Description: "实时盘口", Host: HostStock,
			Path: "/v5/stock/realtime/pankou.json", Params: []Param{stockCode("symbol")},
			Profile: normalize.ProfilePankou,
		},
		{
			Name: "kline", Description: "K线数据", Host: HostStock,
			Path:  "/v5/stock/chart/kline.json",
			Fixed: fixed("type", "before", "indicator", "kline,pe,pb,ps,pcf,market_capital,agt,ggt,balance"),
			Params: []Param{
				stockCode("symbol"),
				{Name: "period", Default: "day"},
				{Name: "count", Query: "-", Default: "284"},
			},
			Profile: normalize.ProfileKline,
			query: func(args url.Values, now time.Time) url.Values {
				// Bars are counted backwards from begin.
				return url.Values{
					"begin": []string{strconv.FormatInt(now.UnixMilli(), 10)},
					"count": []string{"-" + strings.TrimPrefix(args.Get("count"), "-")},
				}
			},
		},
		{
			Name: "earningforecast", Description: "业绩预告", Host: HostStock,
			Path: "/stock/report/earningforecast.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "report", Description: "机构评级", Host: HostStock,
			Path: "/stock/report/latest.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "capital_flow", Description: "当日资金流向", Host: HostStock,
			Path: "/v5/stock/capital/flow.json", Params: []Param{stockCode("symbol")},
			Profile: normalize.ProfileCapitalFlow,
		},
		{
			Name: "capital_history", Description: "资金流向历史", Host: HostStock,
			Path: "/v5/stock/capital/history.json",
			Params: []Param{
				stockCode("symbol"),
				{Name: "count", Default: "20"},
			},
			Profile: normalize.ProfileCapitalHistory,
		},
		{
			Name: "capital_assort", Description: "资金成交分布", Host: HostStock,
			Path: "/v5/stock/capital/assort.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "blocktrans", Description: "大宗交易", Host: HostStock,
			Path: "/v5/stock/capital/blocktrans.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "margin", Description: "融资融券", Host: HostStock,
			Path: "/v5/stock/capital/margin.json", Params: []Param{stockCode("symbol")},
		},
		statementSpec("indicator", "业绩指标", "/v5/stock/finance/cn/indicator.json", normalize.ProfileIndicator),
		statementSpec("income", "利润表", "/v5/stock/finance/cn/income.json", normalize.ProfileIncome),
		statementSpec("balance", "资产负债表", "/v5/stock/finance/cn/balance.json", normalize.ProfileBalance),
		statementSpec("cash_flow", "现金流量表", "/v5/stock/finance/cn/cash_flow.json", normalize.ProfileCashFlow),
		{
			Name: "business", Description: "主营业务构成", Host: HostStock,
			Path: "/v5/stock/finance/cn/business.json", Fixed: fixed("is_detail", "true"),
			Params: []Param{stockCode("symbol"), {Name: "count", Default: "5"}},
		},
		{
			Name: "top_holders", Description: "十大股东", Host: HostStock,
			Path: "/v5/stock/f10/cn/top_holders.json",
			Params: []Param{
				stockCode("symbol"),
				{Name: "circula", Default: "1"},
			},
			Profile: normalize.ProfileTopHolders,
		},
		{
			Name: "main_indicator", Description: "主要指标", Host: HostStock,
			Path: "/v5/stock/f10/cn/indicator.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "holders", Description: "股东人数", Host: HostStock,
			Path: "/v5/stock/f10/cn/holders.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "org_holding_change", Description: "机构持仓变化", Host: HostStock,
			Path: "/v5/stock/f10/cn/org_holding/change.json", Params: []Param{stockCode("symbol")},
		},
		{
			Name: "bonus", Description: "分红融资", Host: HostStock,
			Path: "/v5/stock/f10/cn/bonus.json",
			Params: []Param{
				stockCode("symbol"),
				{Name: "page", Default: "1"},
				{Name: "size", Default: "10"},
			},
		},
		{
			Name: "industry_compare", Description: "行业对比", Host: HostStock,
			Path: "/v5/stock/f10/cn/industry/compare.json", Fixed: fixed("type", "single"),
			Params: []Param{stockCode("symbol")},
		},
		{
			Name: "watch_list", Description: "自选分组", Host: HostStock,
			Path: "/v5/stock/portfolio/list.json", Fixed: fixed("system", "true"),
		},
		{
			Name: "watch_stock", Description: "分组内自选股", Host: HostStock,
			Path: "/v5/stock/portfolio/stock/list.json", Fixed: fixed("size", "1000", "category", "1"),
			Params: []Param{{Name: "pid", Required: true}},
		},
		{
			Name: "nav_daily", Description: "组合净值", Host: HostWeb,
			Path: "/cubes/nav_daily/all.json", Params: []Param{{Name: "cube_symbol", Required: true}},
		},
		{
			Name: "rebalancing_history", Description: "组合调仓历史", Host: HostWeb,
			Path:   "/cubes/rebalancing/history.json",
			Fixed:  fixed("count", "20", "page", "1"),
			Params: []Param{{Name: "cube_symbol", Required: true}},
		},
		{
			Name: "suggest_stock", Description: "股票搜索", Host: HostWeb,
			Path: "/query/v1/suggest_stock.json", Params: []Param{{Name: "keyword", Query: "q", Required: true}},
			Profile: normalize.ProfileSuggestStock,
		},
		fundSpec("fund_detail", "基金详情", "/djapi/fund/detail/{fund_code}", normalize.ProfileNone),
		fundSpec("fund_info", "基金基本信息", "/djapi/fund/{fund_code}", normalize.ProfileNone),
		fundSpec("fund_growth", "基金增长", "/djapi/fund/growth/{fund_code}", normalize.ProfileNone,
			Param{Name: "day", Default: "ty"}),
		fundSpec("fund_nav_history", "基金净值历史", "/djapi/fund/nav/history/{fund_code}", normalize.ProfileFundNavHistory,
			Param{Name: "page", Default: "1"}, Param{Name: "size", Default: "10"}),
		fundSpec("fund_achievement", "基金业绩", "/djapi/fundx/base/fund/achievement/{fund_code}", normalize.ProfileNone),
		fundSpec("fund_asset", "基金资产配置", "/djapi/fundx/base/fund/record/asset/percent", normalize.ProfileNone),
		fundSpec("fund_manager", "基金经理", "/djapi/fundx/base/fund/manager/list", normalize.ProfileNone,
			Param{Name: "post_status", Default: "1"}),
		fundSpec("fund_trade_date", "基金交易日", "/djapi/fund/order/v2/trade_date", normalize.ProfileNone),
		fundSpec("fund_derived", "基金衍生数据", "/djapi/fund/base/quote/data/index/analysis/{fund_code}", normalize.ProfileNone),
		{
			Name: "index_basic_info", Description: "指数基本信息", Host: HostCSIndex,
			Path:   "/csindex-home/indexInfo/index-basic-info/{index_code}",
			Params: []Param{{Name: "index_code", Query: "-", Default: "000300"}},
		},
		{
			Name: "index_details_data", Description: "指数详情", Host: HostCSIndex,
			Path:   "/csindex-home/indexInfo/index-details-data",
			Fixed:  fixed("fileLang", "1"),
			Params: []Param{{Name: "index_code", Query: "indexCode", Default: "000300"}},
		},
		{
			Name: "index_weight_top10", Description: "指数权重股前十", Host: HostCSIndex,
			Path:   "/csindex-home/index/weight/top10/{index_code}",
			Params: []Param{{Name: "index_code", Query: "-", Default: "000300"}},
		},
		{
			Name: "convertible_bond", Description: "可转债列表", Host: HostBond,
			Path: "/api/data/v1/get",
			Fixed: fixed("sortColumns", "PUBLIC_START_DATE", "sortTypes", "-1",
				"reportName", "RPT_BOND_CB_LIST", "columns", "ALL", "source", "WEB", "client", "WEB"),
			Params: []Param{
				{Name: "page_size", Query: "pageSize", Default: "5"},
				{Name: "page_count", Query: "pageNumber", Default: "1"},
			},
		},
		northboundSpec("sh", "沪股通北向持股"),
		northboundSpec("sz", "深股通北向持股"),
		indexPerfSpec(7),
		indexPerfSpec(30),
		indexPerfSpec(90),
	}

	// The fund endpoints that take the code as a query value.
	queryCode := map[string]string{
		"fund_asset":      "fund_code",
		"fund_manager":    "fund_code",
		"fund_trade_date": "fd_code",
	}

	for _, s := range specs {
		if key, ok := queryCode[s.Name]; ok {
			s.Params[0].Query = key
		}
		catalog[s.Name] = s
	}
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Spec, bool) {
	s, ok := catalog[name]
	return s, ok
}

// Operations lists every catalog entry in name order.
func Operations() []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuildOperation validates args against the catalog and fills defaults.
func BuildOperation(name string, args map[string]string) (gateway.Operation, error) {
	spec, ok := catalog[name]
	if !ok {
		return gateway.Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}

	accepted := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		accepted[p.Name] = true
	}
	for k := range args {
		if !accepted[k] {
			return gateway.Operation{}, fmt.Errorf("%w: %s does not accept %q", ErrUnknownParam, name, k)
		}
	}

	params := url.Values{}
	for _, p := range spec.Params {
		v := strings.TrimSpace(args[p.Name])
		if v == "" {
			v = p.Default
		}
		if v == "" {
			if p.Required {
				return gateway.Operation{}, fmt.Errorf("%w: %s needs %q", ErrMissingParam, name, p.Name)
			}
			continue
		}
		params.Set(p.Name, v)
	}

	return gateway.Operation{Name: name, Params: params}, nil
}

// request resolves the path and query for op at time now.
func (s Spec) request(params url.Values, now time.Time) (string, url.Values) {
	path := s.Path
	query := url.Values{}
	for k, vs := range s.Fixed {
		query[k] = append([]string(nil), vs...)
	}

	for _, p := range s.Params {
		v := params.Get(p.Name)
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(v))
		if v == "" || p.Query == "-" {
			continue
		}
		key := p.Query
		if key == "" {
			key = p.Name
		}
		query.Set(key, v)
	}

	if s.query != nil {
		for k, vs := range s.query(params, now) {
			query[k] = vs
		}
	}
	return path, query
}
