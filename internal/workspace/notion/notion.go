package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/jomei/notionapi"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/types"
)

type Properties struct {
	Ticker   string
	Type     string
	Currency string
	ETF      string
	Country  string
	Scope    string
	Quantity string
}

type Params struct {
	Token          string
	HoldingsDB     string
	TransactionsDB string
	PageSize       int
	Properties     Properties
}

// databaseQuerier is the part of notionapi.DatabaseService the adapter uses.
type databaseQuerier interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

type Workspace struct {
	db             databaseQuerier
	nulls          *nullNumbers
	holdingsDB     string
	transactionsDB string
	pageSize       int
	props          Properties
}

var _ interfaces.Workspace = (*Workspace)(nil)

func New(p Params) (*Workspace, error) {
	nulls := newNullNumbers(nil)
	client := notionapi.NewClient(notionapi.Token(p.Token), notionapi.WithHTTPClient(&http.Client{Transport: nulls}))
	return newWorkspace(client.Database, nulls, p)
}

func newWorkspace(db databaseQuerier, nulls *nullNumbers, p Params) (*Workspace, error) {
	holdings, err := ParseDatabaseID(p.HoldingsDB)
	if err != nil {
		return nil, fmt.Errorf("holdings database: %w", err)
	}
	transactions, err := ParseDatabaseID(p.TransactionsDB)
	if err != nil {
		return nil, fmt.Errorf("transactions database: %w", err)
	}
	return &Workspace{
		db:             db,
		nulls:          nulls,
		holdingsDB:     holdings,
		transactionsDB: transactions,
		pageSize:       p.PageSize,
		props:          p.Properties,
	}, nil
}

var idPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}`)

// ParseDatabaseID accepts a bare id, a dashed UUID or a notion.so URL.
func ParseDatabaseID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	matches := idPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no database id in %q", s)
	}
	return normalizeID(matches[len(matches)-1]), nil
}

// Load reads holdings first so relation-typed tickers in the transactions
// table can be resolved to the related holding's ticker.
func (w *Workspace) Load(ctx context.Context) (types.Snapshot, error) {
	holdingPages, err := w.queryAll(ctx, w.holdingsDB)
	if err != nil {
		return types.Snapshot{}, err
	}
	holdings, index := w.parseHoldings(ctx, holdingPages)

	txPages, err := w.queryAll(ctx, w.transactionsDB)
	if err != nil {
		return types.Snapshot{}, err
	}
	txs, err := w.parseTransactions(ctx, txPages, index)
	if err != nil {
		return types.Snapshot{}, err
	}

	return types.Snapshot{Holdings: holdings, Transactions: txs}, nil
}

func (w *Workspace) queryAll(ctx context.Context, id string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	seen := map[notionapi.Cursor]bool{}
	req := &notionapi.DatabaseQueryRequest{PageSize: w.pageSize}

	for {
		resp, err := w.db.Query(ctx, notionapi.DatabaseID(id), req)
		if err != nil {
			return nil, fmt.Errorf("query database %s: %w", id, err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" || seen[resp.NextCursor] {
			return pages, nil
		}
		seen[resp.NextCursor] = true
		req = &notionapi.DatabaseQueryRequest{PageSize: w.pageSize, StartCursor: resp.NextCursor}
	}
}

func (w *Workspace) parseHoldings(ctx context.Context, pages []notionapi.Page) ([]types.Holding, map[string]string) {
	holdings := make([]types.Holding, 0, len(pages))
	index := make(map[string]string, len(pages))

	for _, page := range pages {
		id := normalizeID(string(page.ID))
		ticker, _ := text(page.Properties[w.props.Ticker])
		if ticker == "" {
			logger.Warn(ctx, "Skipping holding without ticker", "page_id", id)
			continue
		}

		h := types.Holding{PageID: id, Ticker: ticker}
		h.Type, _ = text(page.Properties[w.props.Type])
		h.Currency, _ = text(page.Properties[w.props.Currency])
		h.Currency = strings.ToUpper(h.Currency)
		h.ETF = boolean(page.Properties[w.props.ETF])
		h.Country, _ = text(page.Properties[w.props.Country])
		h.Scope, _ = text(page.Properties[w.props.Scope])

		holdings = append(holdings, h)
		index[id] = ticker
	}
	return holdings, index
}

func (w *Workspace) parseTransactions(ctx context.Context, pages []notionapi.Page, index map[string]string) ([]types.Transaction, error) {
	txs := make([]types.Transaction, 0, len(pages))
	var errs []error

	for _, page := range pages {
		id := normalizeID(string(page.ID))
		prop := page.Properties[w.props.Ticker]

		var ticker string
		if ids, ok := relations(prop); ok {
			if len(ids) == 0 {
				logger.Warn(ctx, "Skipping transaction without related holding", "page_id", id)
				continue
			}
			ticker, ok = index[ids[0]]
			if !ok {
				errs = append(errs, fmt.Errorf("transaction %s: related page %s is not a holding", id, ids[0]))
				continue
			}
		} else {
			ticker, _ = text(prop)
		}
		if ticker == "" {
			logger.Warn(ctx, "Skipping transaction without ticker", "page_id", id)
			continue
		}

		qty, ok := number(page.Properties[w.props.Quantity])
		if !ok || w.nulls.isNull(id, w.props.Quantity) {
			errs = append(errs, fmt.Errorf("transaction %s (%s): missing or invalid %q", id, ticker, w.props.Quantity))
			continue
		}
		txs = append(txs, types.Transaction{Ticker: ticker, Quantity: qty})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return txs, nil
}
